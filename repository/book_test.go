package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lms/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every transaction serializes, standing in for the row
	// locks mysql takes
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func mkBook(t *testing.T, db *gorm.DB, copies uint) Book {
	t.Helper()
	book := Book{
		Title:           "Test Book",
		Author:          "Test Author",
		CopiesTotal:     copies,
		CopiesAvailable: copies,
	}
	require.NoError(t, db.Create(&book).Error)
	return book
}

func reload(t *testing.T, db *gorm.DB, bookID uint) Book {
	t.Helper()
	var book Book
	require.NoError(t, db.First(&book, bookID).Error)
	return book
}

func TestReserveDecrementsOnCommit(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	book := mkBook(t, db, 2)

	txi := repo.Reserve(context.Background(), book.ID)
	require.NoError(t, txi.Err)
	require.NoError(t, txi.DB.Commit().Error)

	assert.Equal(t, uint(1), reload(t, db, book.ID).CopiesAvailable)
}

func TestReserveRollbackRestoresCopy(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	book := mkBook(t, db, 1)

	txi := repo.Reserve(context.Background(), book.ID)
	require.NoError(t, txi.Err)
	txi.DB.Rollback()

	assert.Equal(t, uint(1), reload(t, db, book.ID).CopiesAvailable)
}

func TestReserveNoCopies(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	book := mkBook(t, db, 0)

	txi := repo.Reserve(context.Background(), book.ID)
	assert.ErrorIs(t, txi.Err, domain.ErrNoCopies)
	assert.Equal(t, uint(0), reload(t, db, book.ID).CopiesAvailable)
}

func TestReserveUnknownBook(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)

	txi := repo.Reserve(context.Background(), 999)
	assert.ErrorIs(t, txi.Err, domain.ErrNotFound)
}

func TestReleaseGuardsAgainstDoubleRelease(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	book := mkBook(t, db, 1)

	err := repo.Release(context.Background(), book.ID)
	assert.ErrorIs(t, err, domain.ErrExceedsTotal)
	assert.Equal(t, uint(1), reload(t, db, book.ID).CopiesAvailable)
}

func TestReserveThenRelease(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	book := mkBook(t, db, 3)

	ctx := context.Background()
	txi := repo.Reserve(ctx, book.ID)
	require.NoError(t, txi.Err)
	require.NoError(t, txi.DB.Commit().Error)
	require.NoError(t, repo.Release(ctx, book.ID))

	assert.Equal(t, uint(3), reload(t, db, book.ID).CopiesAvailable)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	book := mkBook(t, db, 3)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txi := repo.Reserve(context.Background(), book.ID)
			if txi.Err != nil {
				errs <- txi.Err
				return
			}
			errs <- txi.DB.Commit().Error
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrNoCopies)
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, uint(0), reload(t, db, book.ID).CopiesAvailable)
}

func TestAdjustTotals(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	loanRepo := NewLoanRepo(db)
	book := mkBook(t, db, 2)
	ctx := context.Background()

	// one copy out
	txi := repo.Reserve(ctx, book.ID)
	require.NoError(t, txi.Err)
	loan := Loan{
		Reference:     "ref-1",
		BookID:        book.ID,
		BorrowerName:  "A",
		BorrowerEmail: "a@example.com",
		CardNumber:    "C1",
		Status:        domain.StatusBorrowed,
	}
	require.NoError(t, loanRepo.CreateTx(txi.DB, &loan))
	require.NoError(t, txi.DB.Commit().Error)

	t.Run("grow recomputes available", func(t *testing.T) {
		updated, err := repo.AdjustTotals(ctx, book.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, uint(5), updated.CopiesTotal)
		assert.Equal(t, uint(4), updated.CopiesAvailable)
	})

	t.Run("shrink to active loan count", func(t *testing.T) {
		updated, err := repo.AdjustTotals(ctx, book.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, uint(1), updated.CopiesTotal)
		assert.Equal(t, uint(0), updated.CopiesAvailable)
	})

	t.Run("shrink below active loan count refused", func(t *testing.T) {
		_, err := repo.AdjustTotals(ctx, book.ID, 0)
		assert.ErrorIs(t, err, domain.ErrInconsistent)
		assert.Equal(t, uint(1), reload(t, db, book.ID).CopiesTotal)
	})
}

func TestDeleteWithHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepo(db)
	loanRepo := NewLoanRepo(db)
	book := mkBook(t, db, 1)
	other := mkBook(t, db, 1)
	ctx := context.Background()

	txi := repo.Reserve(ctx, book.ID)
	require.NoError(t, txi.Err)
	loan := Loan{
		Reference:     "ref-del",
		BookID:        book.ID,
		BorrowerName:  "A",
		BorrowerEmail: "a@example.com",
		CardNumber:    "C1",
		Status:        domain.StatusBorrowed,
	}
	require.NoError(t, loanRepo.CreateTx(txi.DB, &loan))
	require.NoError(t, txi.DB.Commit().Error)

	assert.ErrorIs(t, repo.DeleteWithHistory(ctx, book.ID), domain.ErrActiveLoansExist)

	// terminate the loan and release its copy
	txl := loanRepo.BeginTransition(ctx, loan.ID)
	require.NoError(t, txl.Err)
	txl.Loan.Status = domain.StatusReturned
	require.NoError(t, loanRepo.SaveTx(txl.DB, &txl.Loan))
	require.NoError(t, repo.ReleaseTx(txl.DB, book.ID))
	require.NoError(t, txl.DB.Commit().Error)

	require.NoError(t, repo.DeleteWithHistory(ctx, book.ID))
	_, err := repo.GetById(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = loanRepo.GetById(ctx, loan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// unrelated book untouched
	assert.Equal(t, uint(1), reload(t, db, other.ID).CopiesAvailable)
}
