package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lms/domain"
)

type loanRepository struct {
	database *gorm.DB
}

func (l *loanRepository) CreateTx(tx *gorm.DB, loan *Loan) error {
	return tx.Create(loan).Error
}

func (l *loanRepository) GetById(ctx context.Context, loanID uint) (Loan, error) {
	var loan Loan
	err := l.database.WithContext(ctx).Preload("Book").First(&loan, loanID).Error
	return loan, translateNotFound(err)
}

// BeginTransition opens a transaction with the loan row locked, so status
// changes and the matching copy release commit or roll back as one unit.
// Concurrent transitions on the same loan serialize on this lock.
func (l *loanRepository) BeginTransition(ctx context.Context, loanID uint) TxL {
	tx := l.database.WithContext(ctx).Begin()
	if tx.Error != nil {
		return TxL{Err: tx.Error}
	}
	var loan Loan
	if err := forUpdate(tx).First(&loan, loanID).Error; err != nil {
		tx.Rollback()
		return TxL{Err: translateNotFound(err)}
	}
	return TxL{DB: tx, Loan: loan}
}

func (l *loanRepository) SaveTx(tx *gorm.DB, loan *Loan) error {
	return tx.Save(loan).Error
}

func (l *loanRepository) DeleteTx(tx *gorm.DB, loanID uint) error {
	return tx.Delete(&Loan{}, loanID).Error
}

func (l *loanRepository) CountActiveByCard(ctx context.Context, cardNumber string) (int64, error) {
	return l.countActiveByCard(l.database.WithContext(ctx), cardNumber)
}

func (l *loanRepository) CountActiveByCardTx(tx *gorm.DB, cardNumber string) (int64, error) {
	return l.countActiveByCard(tx, cardNumber)
}

func (l *loanRepository) countActiveByCard(db *gorm.DB, cardNumber string) (int64, error) {
	var active int64
	err := db.Model(&Loan{}).
		Where("card_number = ? AND status = ?", cardNumber, domain.StatusBorrowed).
		Count(&active).Error
	return active, err
}

func (l *loanRepository) ListActive(ctx context.Context) ([]Loan, error) {
	var loans []Loan
	err := l.database.WithContext(ctx).Preload("Book").
		Where("status = ?", domain.StatusBorrowed).
		Order("due_at").
		Find(&loans).Error
	return loans, err
}

// ListDueBefore returns borrowed loans whose due date has passed t.
func (l *loanRepository) ListDueBefore(ctx context.Context, t time.Time) ([]Loan, error) {
	var loans []Loan
	err := l.database.WithContext(ctx).Preload("Book").
		Where("status = ? AND due_at < ?", domain.StatusBorrowed, t).
		Order("due_at").
		Find(&loans).Error
	return loans, err
}

func (l *loanRepository) ListByCard(ctx context.Context, cardNumber string) ([]Loan, error) {
	var loans []Loan
	err := l.database.WithContext(ctx).Preload("Book").
		Where("card_number = ?", cardNumber).
		Order("borrowed_at DESC").
		Find(&loans).Error
	return loans, err
}

type LoanRepository interface {
	CreateTx(tx *gorm.DB, loan *Loan) error
	GetById(ctx context.Context, loanID uint) (Loan, error)
	BeginTransition(ctx context.Context, loanID uint) TxL
	SaveTx(tx *gorm.DB, loan *Loan) error
	DeleteTx(tx *gorm.DB, loanID uint) error
	CountActiveByCard(ctx context.Context, cardNumber string) (int64, error)
	CountActiveByCardTx(tx *gorm.DB, cardNumber string) (int64, error)
	ListActive(ctx context.Context) ([]Loan, error)
	ListDueBefore(ctx context.Context, t time.Time) ([]Loan, error)
	ListByCard(ctx context.Context, cardNumber string) ([]Loan, error)
}

func NewLoanRepo(db *gorm.DB) LoanRepository {
	return &loanRepository{database: db}
}
