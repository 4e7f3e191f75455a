package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lms/domain"
)

type bookRepository struct {
	database *gorm.DB
}

// forUpdate adds a SELECT ... FOR UPDATE row lock. sqlite has no such clause;
// its single-writer connection already serializes the transaction.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (b *bookRepository) Create(ctx context.Context, book *Book) error {
	return b.database.WithContext(ctx).Create(book).Error
}

func (b *bookRepository) GetById(ctx context.Context, bookID uint) (Book, error) {
	var book Book
	err := b.database.WithContext(ctx).First(&book, bookID).Error
	return book, translateNotFound(err)
}

func (b *bookRepository) ListAvailable(ctx context.Context) ([]Book, error) {
	var books []Book
	err := b.database.WithContext(ctx).
		Where("copies_available > 0").
		Order("title").
		Find(&books).Error
	return books, err
}

// Reserve locks the book row, checks availability and decrements it, leaving
// the transaction open so the caller can persist the loan under the same lock.
// The caller owns the commit; rolling back undoes the reservation.
func (b *bookRepository) Reserve(ctx context.Context, bookID uint) TxI {
	tx := b.database.WithContext(ctx).Begin()
	if tx.Error != nil {
		return TxI{Err: tx.Error}
	}
	var book Book
	if err := forUpdate(tx).First(&book, bookID).Error; err != nil {
		tx.Rollback()
		return TxI{Err: translateNotFound(err)}
	}
	if book.CopiesAvailable == 0 {
		tx.Rollback()
		return TxI{Err: domain.ErrNoCopies}
	}
	book.CopiesAvailable--
	if err := tx.Save(&book).Error; err != nil {
		tx.Rollback()
		return TxI{Err: err}
	}
	return TxI{DB: tx}
}

// ReleaseTx increments availability inside the caller's transaction, guarding
// against releasing past the total.
func (b *bookRepository) ReleaseTx(tx *gorm.DB, bookID uint) error {
	var book Book
	if err := forUpdate(tx).First(&book, bookID).Error; err != nil {
		return translateNotFound(err)
	}
	if book.CopiesAvailable >= book.CopiesTotal {
		return domain.ErrExceedsTotal
	}
	book.CopiesAvailable++
	return tx.Save(&book).Error
}

func (b *bookRepository) Release(ctx context.Context, bookID uint) error {
	tx := b.database.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := b.ReleaseTx(tx, bookID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// AdjustTotals resizes the copy pool. Availability is recomputed from the
// active loan count under the same lock, so the ledger invariant holds exactly
// after the resize.
func (b *bookRepository) AdjustTotals(ctx context.Context, bookID uint, newTotal uint) (Book, error) {
	tx := b.database.WithContext(ctx).Begin()
	if tx.Error != nil {
		return Book{}, tx.Error
	}
	var book Book
	if err := forUpdate(tx).First(&book, bookID).Error; err != nil {
		tx.Rollback()
		return Book{}, translateNotFound(err)
	}
	var active int64
	if err := tx.Model(&Loan{}).
		Where("book_id = ? AND status = ?", bookID, domain.StatusBorrowed).
		Count(&active).Error; err != nil {
		tx.Rollback()
		return Book{}, err
	}
	if newTotal < uint(active) {
		tx.Rollback()
		return Book{}, domain.ErrInconsistent
	}
	book.CopiesTotal = newTotal
	book.CopiesAvailable = newTotal - uint(active)
	if err := tx.Save(&book).Error; err != nil {
		tx.Rollback()
		return Book{}, err
	}
	if err := tx.Commit().Error; err != nil {
		return Book{}, err
	}
	return book, nil
}

// DeleteWithHistory removes a book and purges its terminal loan history in one
// transaction. Books with active loans cannot be deleted.
func (b *bookRepository) DeleteWithHistory(ctx context.Context, bookID uint) error {
	tx := b.database.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	var book Book
	if err := forUpdate(tx).First(&book, bookID).Error; err != nil {
		tx.Rollback()
		return translateNotFound(err)
	}
	var active int64
	if err := tx.Model(&Loan{}).
		Where("book_id = ? AND status = ?", bookID, domain.StatusBorrowed).
		Count(&active).Error; err != nil {
		tx.Rollback()
		return err
	}
	if active > 0 {
		tx.Rollback()
		return domain.ErrActiveLoansExist
	}
	if err := tx.Where("book_id = ?", bookID).Delete(&Loan{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&Book{}, bookID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (b *bookRepository) CountActive(ctx context.Context, bookID uint) (int64, error) {
	var active int64
	err := b.database.WithContext(ctx).Model(&Loan{}).
		Where("book_id = ? AND status = ?", bookID, domain.StatusBorrowed).
		Count(&active).Error
	return active, err
}

type BookRepository interface {
	Create(ctx context.Context, book *Book) error
	GetById(ctx context.Context, bookID uint) (Book, error)
	ListAvailable(ctx context.Context) ([]Book, error)
	Reserve(ctx context.Context, bookID uint) TxI
	ReleaseTx(tx *gorm.DB, bookID uint) error
	Release(ctx context.Context, bookID uint) error
	AdjustTotals(ctx context.Context, bookID uint, newTotal uint) (Book, error)
	DeleteWithHistory(ctx context.Context, bookID uint) error
	CountActive(ctx context.Context, bookID uint) (int64, error)
}

func NewBookRepo(db *gorm.DB) BookRepository {
	return &bookRepository{database: db}
}
