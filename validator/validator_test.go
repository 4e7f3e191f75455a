package validator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/domain"
)

func TestValidateISBN13(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateISBN13("9780306406157"))
		assert.NoError(t, ValidateISBN13("9780000000002"))
	})

	t.Run("empty means not provided", func(t *testing.T) {
		assert.NoError(t, ValidateISBN13(""))
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		assert.ErrorIs(t, ValidateISBN13("9780306406158"), domain.ErrISBNChecksum)
		// single flipped digit in the prefix
		assert.ErrorIs(t, ValidateISBN13("9780306306157"), domain.ErrISBNChecksum)
	})

	t.Run("format", func(t *testing.T) {
		assert.ErrorIs(t, ValidateISBN13("12345"), domain.ErrISBNFormat)
		assert.ErrorIs(t, ValidateISBN13("978030640615"), domain.ErrISBNFormat)
		assert.ErrorIs(t, ValidateISBN13("97803064061577"), domain.ErrISBNFormat)
		assert.ErrorIs(t, ValidateISBN13("97803064061X7"), domain.ErrISBNFormat)
		assert.ErrorIs(t, ValidateISBN13("978-030640615"), domain.ErrISBNFormat)
	})

	t.Run("computed check digit round-trips", func(t *testing.T) {
		for _, prefix := range []string{"978030640615", "978000000000", "979123456789"} {
			full := fmt.Sprintf("%s%d", prefix, CheckDigit(prefix))
			assert.NoError(t, ValidateISBN13(full), full)
		}
	})
}

func TestValidateYear(t *testing.T) {
	current := time.Now().Year()
	assert.NoError(t, ValidateYear(1450, current))
	assert.NoError(t, ValidateYear(current, current))
	assert.ErrorIs(t, ValidateYear(1449, current), domain.ErrYearOutOfRange)
	assert.ErrorIs(t, ValidateYear(current+1, current), domain.ErrYearOutOfRange)
}

func TestValidateCopyCounts(t *testing.T) {
	assert.NoError(t, ValidateCopyCounts(0, 0))
	assert.NoError(t, ValidateCopyCounts(3, 3))
	assert.NoError(t, ValidateCopyCounts(3, 1))
	assert.ErrorIs(t, ValidateCopyCounts(2, 3), domain.ErrInconsistent)
	assert.ErrorIs(t, ValidateCopyCounts(-1, 0), domain.ErrInconsistent)
	assert.ErrorIs(t, ValidateCopyCounts(2, -1), domain.ErrInconsistent)
}

func TestValidateBorrower(t *testing.T) {
	valid := domain.BorrowRequest{
		BookID:        1,
		BorrowerName:  "John Doe",
		BorrowerEmail: "john@example.com",
		CardNumber:    "CARD123",
	}
	assert.NoError(t, ValidateBorrower(valid))

	bad := valid
	bad.BorrowerEmail = "not-an-email"
	err := ValidateBorrower(bad)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	bad = valid
	bad.BorrowerName = ""
	bad.CardNumber = ""
	err = ValidateBorrower(bad)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestValidateBook(t *testing.T) {
	req := domain.CreateBookRequest{
		Title:           "Test Book",
		ISBN:            "9780306406157",
		Author:          "Test Author",
		PublicationYear: 2000,
		CopiesTotal:     2,
		CopiesAvailable: 2,
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateBook(req, now))

	bad := req
	bad.ISBN = "9780306406158"
	assert.True(t, domain.IsValidation(ValidateBook(bad, now)))

	bad = req
	bad.PublicationYear = 1200
	assert.True(t, domain.IsValidation(ValidateBook(bad, now)))

	bad = req
	bad.CopiesAvailable = 5
	assert.True(t, domain.IsValidation(ValidateBook(bad, now)))

	// year zero means unknown, accepted
	bad = req
	bad.PublicationYear = 0
	assert.NoError(t, ValidateBook(bad, now))
}

func TestFormatISBN13(t *testing.T) {
	assert.Equal(t, "978-0-3064-0615-7", FormatISBN13("9780306406157"))
	assert.Equal(t, "", FormatISBN13(""))
	assert.Equal(t, "12345", FormatISBN13("12345"))
}
