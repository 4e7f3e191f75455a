package validator

import (
	"fmt"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"lms/domain"
)

var fields = playground.New()

// ValidateISBN13 checks a 13-digit ISBN. An empty value means "not provided"
// and passes; a non-empty value must be exactly 13 ASCII digits whose last
// digit matches the weighted checksum of the first twelve.
func ValidateISBN13(isbn string) error {
	if isbn == "" {
		return nil
	}
	if len(isbn) != 13 {
		return domain.ErrISBNFormat
	}
	for _, ch := range isbn {
		if ch < '0' || ch > '9' {
			return domain.ErrISBNFormat
		}
	}
	if CheckDigit(isbn[:12]) != int(isbn[12]-'0') {
		return domain.ErrISBNChecksum
	}
	return nil
}

// CheckDigit computes the ISBN-13 check digit for a 12-digit prefix:
// alternating weights 1 and 3, check digit (10 - sum mod 10) mod 10.
func CheckDigit(prefix string) int {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		d := int(prefix[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// ValidateYear bounds a publication year to [1450, currentYear].
func ValidateYear(year, currentYear int) error {
	if year < 1450 || year > currentYear {
		return fmt.Errorf("%w: %d not in [1450, %d]", domain.ErrYearOutOfRange, year, currentYear)
	}
	return nil
}

// ValidateCopyCounts rejects negative counts and available > total.
func ValidateCopyCounts(total, available int) error {
	if total < 0 || available < 0 || available > total {
		return fmt.Errorf("%w: total=%d available=%d", domain.ErrInconsistent, total, available)
	}
	return nil
}

// ValidateBorrower checks the borrower fields of a borrow request. All field
// failures are collected, not just the first.
func ValidateBorrower(req domain.BorrowRequest) error {
	return domain.NewValidationError(structErrors(req))
}

// ValidateBook checks a catalog creation request: field constraints, ISBN
// checksum, year range and copy-count consistency.
func ValidateBook(req domain.CreateBookRequest, now time.Time) error {
	var errs *multierror.Error
	errs = multierror.Append(errs, structErrors(req))
	if err := ValidateISBN13(req.ISBN); err != nil {
		errs = multierror.Append(errs, err)
	}
	if req.PublicationYear != 0 {
		if err := ValidateYear(req.PublicationYear, now.Year()); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := ValidateCopyCounts(req.CopiesTotal, req.CopiesAvailable); err != nil {
		errs = multierror.Append(errs, err)
	}
	return domain.NewValidationError(errs.ErrorOrNil())
}

func structErrors(v interface{}) error {
	err := fields.Struct(v)
	if err == nil {
		return nil
	}
	ves, ok := err.(playground.ValidationErrors)
	if !ok {
		return err
	}
	var errs *multierror.Error
	for _, fe := range ves {
		errs = multierror.Append(errs, fmt.Errorf("field %s failed on %q", fe.Field(), fe.Tag()))
	}
	return errs.ErrorOrNil()
}

// FormatISBN13 groups a 13-digit ISBN as 3-1-4-4-1 for display. Values that
// are not 13 digits come back unchanged.
func FormatISBN13(isbn string) string {
	var digits strings.Builder
	for _, ch := range isbn {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	s := digits.String()
	if len(s) != 13 {
		return isbn
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", s[:3], s[3:4], s[4:8], s[8:12], s[12:])
}
