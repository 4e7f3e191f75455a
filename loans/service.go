package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"lms/domain"
	"lms/events"
	log2 "lms/log"
	"lms/repository"
	"lms/validator"
)

// Config carries the lending policy. Values are injected here instead of being
// read from ambient settings.
type Config struct {
	LoanTermDays   int
	PenaltyPerDay  float64
	MaxActiveLoans int
}

func DefaultConfig() Config {
	return Config{
		LoanTermDays:   14,
		PenaltyPerDay:  0.50,
		MaxActiveLoans: 5,
	}
}

type Option func(*Service)

// WithClock replaces the wall clock, for tests and deterministic penalties.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher enables lifecycle notifications.
func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// Service owns the loan state machine. Every transition that changes whether a
// copy is held runs in one transaction with the matching ledger mutation.
type Service struct {
	books  repository.BookRepository
	loans  repository.LoanRepository
	cfg    Config
	now    func() time.Time
	events *events.Publisher
}

func NewService(
	books repository.BookRepository,
	loans repository.LoanRepository,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		books: books,
		loans: loans,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Borrow validates the borrower, enforces the active-loan cap, reserves one
// copy and persists the loan, all-or-nothing. A reservation orphaned by a
// failed insert rolls back with the transaction, so no copy stays held for a
// loan that was never created.
func (s *Service) Borrow(ctx context.Context, req domain.BorrowRequest) (repository.Loan, error) {
	logger := log2.GetLogger(ctx)
	if err := validator.ValidateBorrower(req); err != nil {
		return repository.Loan{}, err
	}
	active, err := s.loans.CountActiveByCard(ctx, req.CardNumber)
	if err != nil {
		return repository.Loan{}, err
	}
	if active >= int64(s.cfg.MaxActiveLoans) {
		return repository.Loan{}, domain.ErrBorrowerLimit
	}
	txi := s.books.Reserve(ctx, req.BookID)
	if txi.Err != nil {
		return repository.Loan{}, txi.Err
	}
	// Recheck inside the transaction: two borrows racing on the same card can
	// both pass the pre-check.
	active, err = s.loans.CountActiveByCardTx(txi.DB, req.CardNumber)
	if err != nil {
		txi.DB.Rollback()
		return repository.Loan{}, err
	}
	if active >= int64(s.cfg.MaxActiveLoans) {
		txi.DB.Rollback()
		return repository.Loan{}, domain.ErrBorrowerLimit
	}
	now := s.now()
	loan := repository.Loan{
		Reference:     uuid.New().String(),
		BookID:        req.BookID,
		BorrowerName:  req.BorrowerName,
		BorrowerEmail: req.BorrowerEmail,
		CardNumber:    req.CardNumber,
		Comments:      req.Comments,
		BorrowedAt:    now,
		DueAt:         now.AddDate(0, 0, s.cfg.LoanTermDays),
		Status:        domain.StatusBorrowed,
	}
	if err = s.loans.CreateTx(txi.DB, &loan); err != nil {
		logger.WithError(err).Errorf("Borrow: persist loan fail, releasing reservation: %s", err)
		txi.DB.Rollback()
		return repository.Loan{}, err
	}
	if err = txi.DB.Commit().Error; err != nil {
		return repository.Loan{}, err
	}
	logger.Infof("loan %s borrowed: book %d, card %s", loan.Reference, loan.BookID, loan.CardNumber)
	s.events.Publish(ctx, events.Message{
		Event:      events.EventBorrowed,
		LoanID:     loan.ID,
		Reference:  loan.Reference,
		BookID:     loan.BookID,
		CardNumber: loan.CardNumber,
		At:         now,
	})
	return loan, nil
}

// Return marks a loan returned and releases its copy in the same transaction.
// Returning an already-returned loan is a no-op; the copy is released exactly
// once because concurrent callers serialize on the locked loan row and only
// the first one sees the borrowed status.
func (s *Service) Return(ctx context.Context, loanID uint) (repository.Loan, error) {
	txl := s.loans.BeginTransition(ctx, loanID)
	if txl.Err != nil {
		return repository.Loan{}, txl.Err
	}
	loan := txl.Loan
	if loan.Status == domain.StatusReturned {
		txl.DB.Rollback()
		return loan, nil
	}
	if loan.Status == domain.StatusCanceled {
		txl.DB.Rollback()
		return loan, domain.ErrLoanNotActive
	}
	now := s.now()
	loan.ReturnedAt = &now
	loan.Status = domain.StatusReturned
	if err := s.loans.SaveTx(txl.DB, &loan); err != nil {
		txl.DB.Rollback()
		return repository.Loan{}, err
	}
	if err := s.books.ReleaseTx(txl.DB, loan.BookID); err != nil {
		txl.DB.Rollback()
		return repository.Loan{}, err
	}
	if err := txl.DB.Commit().Error; err != nil {
		return repository.Loan{}, err
	}
	log2.GetLogger(ctx).Infof("loan %s returned: book %d", loan.Reference, loan.BookID)
	s.events.Publish(ctx, events.Message{
		Event:      events.EventReturned,
		LoanID:     loan.ID,
		Reference:  loan.Reference,
		BookID:     loan.BookID,
		CardNumber: loan.CardNumber,
		At:         now,
	})
	return loan, nil
}

// Cancel transitions an active loan to canceled and releases its copy.
// Canceling a loan that is already returned or canceled is a no-op.
func (s *Service) Cancel(ctx context.Context, loanID uint) (repository.Loan, error) {
	txl := s.loans.BeginTransition(ctx, loanID)
	if txl.Err != nil {
		return repository.Loan{}, txl.Err
	}
	loan := txl.Loan
	if domain.IsTerminal(loan.Status) {
		txl.DB.Rollback()
		return loan, nil
	}
	loan.Status = domain.StatusCanceled
	if err := s.loans.SaveTx(txl.DB, &loan); err != nil {
		txl.DB.Rollback()
		return repository.Loan{}, err
	}
	if err := s.books.ReleaseTx(txl.DB, loan.BookID); err != nil {
		txl.DB.Rollback()
		return repository.Loan{}, err
	}
	if err := txl.DB.Commit().Error; err != nil {
		return repository.Loan{}, err
	}
	log2.GetLogger(ctx).Infof("loan %s canceled: book %d", loan.Reference, loan.BookID)
	s.events.Publish(ctx, events.Message{
		Event:      events.EventCanceled,
		LoanID:     loan.ID,
		Reference:  loan.Reference,
		BookID:     loan.BookID,
		CardNumber: loan.CardNumber,
		At:         s.now(),
	})
	return loan, nil
}

// Purge removes a terminal loan record. Active loans are refused; they must go
// through Cancel so their copy is released.
func (s *Service) Purge(ctx context.Context, loanID uint) error {
	txl := s.loans.BeginTransition(ctx, loanID)
	if txl.Err != nil {
		return txl.Err
	}
	if !domain.IsTerminal(txl.Loan.Status) {
		txl.DB.Rollback()
		return domain.ErrLoanNotTerminal
	}
	return s.purgeLocked(ctx, txl)
}

// ForcePurge removes a loan even when it is still active. The held copy is
// released in the same transaction, so the ledger stays consistent even on
// this anomaly path.
func (s *Service) ForcePurge(ctx context.Context, loanID uint) error {
	txl := s.loans.BeginTransition(ctx, loanID)
	if txl.Err != nil {
		return txl.Err
	}
	if !domain.IsTerminal(txl.Loan.Status) {
		if err := s.books.ReleaseTx(txl.DB, txl.Loan.BookID); err != nil {
			txl.DB.Rollback()
			return err
		}
	}
	return s.purgeLocked(ctx, txl)
}

func (s *Service) purgeLocked(ctx context.Context, txl repository.TxL) error {
	if err := s.loans.DeleteTx(txl.DB, txl.Loan.ID); err != nil {
		txl.DB.Rollback()
		return err
	}
	if err := txl.DB.Commit().Error; err != nil {
		return err
	}
	s.events.Publish(ctx, events.Message{
		Event:      events.EventPurged,
		LoanID:     txl.Loan.ID,
		Reference:  txl.Loan.Reference,
		BookID:     txl.Loan.BookID,
		CardNumber: txl.Loan.CardNumber,
		At:         s.now(),
	})
	return nil
}

func (s *Service) Get(ctx context.Context, loanID uint) (repository.Loan, error) {
	return s.loans.GetById(ctx, loanID)
}

// DaysOverdue counts whole days past the due date, floored, at the return time
// if the loan was returned, else now.
func (s *Service) DaysOverdue(loan repository.Loan) int {
	ref := s.now()
	if loan.ReturnedAt != nil {
		ref = *loan.ReturnedAt
	}
	if !ref.After(loan.DueAt) {
		return 0
	}
	return int(ref.Sub(loan.DueAt).Hours() / 24)
}

// Penalty is days overdue times the configured per-day rate.
func (s *Service) Penalty(loan repository.Loan) float64 {
	return float64(s.DaysOverdue(loan)) * s.cfg.PenaltyPerDay
}

// EffectiveStatus classifies a borrowed loan past its due date as late. The
// classification is derived, never written back, so it has no ledger effect.
func (s *Service) EffectiveStatus(loan repository.Loan) string {
	if loan.Status == domain.StatusBorrowed && loan.DueAt.Before(s.now()) {
		return domain.StatusLate
	}
	return loan.Status
}

func (s *Service) ListActive(ctx context.Context) ([]repository.Loan, error) {
	return s.loans.ListActive(ctx)
}

// ListLate returns active loans past due, reported with the derived late
// status.
func (s *Service) ListLate(ctx context.Context) ([]repository.Loan, error) {
	late, err := s.loans.ListDueBefore(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return lo.Map(late, func(loan repository.Loan, _ int) repository.Loan {
		loan.Status = domain.StatusLate
		return loan
	}), nil
}

func (s *Service) History(ctx context.Context, cardNumber string) ([]repository.Loan, error) {
	return s.loans.ListByCard(ctx, cardNumber)
}

type ReturnResult struct {
	LoanID uint  `json:"loan_id"`
	Err    error `json:"-"`
}

// ReturnMany marks a batch of loans returned, one transaction per loan.
// Already-returned loans count as success.
func (s *Service) ReturnMany(ctx context.Context, loanIDs []uint) []ReturnResult {
	return lo.Map(loanIDs, func(id uint, _ int) ReturnResult {
		_, err := s.Return(ctx, id)
		return ReturnResult{LoanID: id, Err: err}
	})
}
