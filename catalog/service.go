package catalog

import (
	"context"
	"time"

	"lms/domain"
	log2 "lms/log"
	"lms/repository"
	"lms/validator"
)

// Service covers item administration: creating books, resizing copy pools and
// deleting books. All copy-count writes go through the book repository.
type Service struct {
	books repository.BookRepository
	now   func() time.Time
}

func NewService(books repository.BookRepository) *Service {
	return &Service{books: books, now: time.Now}
}

// CreateBook validates the catalog entry (ISBN checksum, year range, copy
// counts) and inserts it.
func (s *Service) CreateBook(ctx context.Context, req domain.CreateBookRequest) (repository.Book, error) {
	if err := validator.ValidateBook(req, s.now()); err != nil {
		return repository.Book{}, err
	}
	book := repository.Book{
		Title:           req.Title,
		ISBN:            req.ISBN,
		Author:          req.Author,
		Category:        req.Category,
		Publisher:       req.Publisher,
		Language:        req.Language,
		Pages:           req.Pages,
		PublicationYear: req.PublicationYear,
		Price:           req.Price,
		Description:     req.Description,
		CopiesTotal:     uint(req.CopiesTotal),
		CopiesAvailable: uint(req.CopiesAvailable),
	}
	if err := s.books.Create(ctx, &book); err != nil {
		return repository.Book{}, err
	}
	log2.GetLogger(ctx).Infof("book %d created: %q", book.ID, book.Title)
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, bookID uint) (repository.Book, error) {
	return s.books.GetById(ctx, bookID)
}

func (s *Service) ListAvailable(ctx context.Context) ([]repository.Book, error) {
	return s.books.ListAvailable(ctx)
}

// AdjustTotals resizes a book's copy pool. Shrinking below the active loan
// count is refused.
func (s *Service) AdjustTotals(ctx context.Context, bookID uint, newTotal int) (repository.Book, error) {
	if newTotal < 0 {
		return repository.Book{}, domain.NewValidationError(domain.ErrInconsistent)
	}
	return s.books.AdjustTotals(ctx, bookID, uint(newTotal))
}

// MarkUnavailable stops further lending by shrinking the pool to the copies
// currently out. Setting copies_available to zero directly would break the
// ledger invariant for books with active loans.
func (s *Service) MarkUnavailable(ctx context.Context, bookID uint) (repository.Book, error) {
	active, err := s.books.CountActive(ctx, bookID)
	if err != nil {
		return repository.Book{}, err
	}
	return s.books.AdjustTotals(ctx, bookID, uint(active))
}

// DeleteBook removes a book and its terminal loan history. Books with active
// loans are refused.
func (s *Service) DeleteBook(ctx context.Context, bookID uint) error {
	if err := s.books.DeleteWithHistory(ctx, bookID); err != nil {
		return err
	}
	log2.GetLogger(ctx).Infof("book %d deleted with its loan history", bookID)
	return nil
}
