package domain

// Loan status values as stored. Late is never persisted: a loan stays
// "borrowed" in storage and is classified late at read time from its due date,
// so copy bookkeeping only ever reacts to borrowed/returned/canceled.
const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
	StatusLate     = "late"
	StatusCanceled = "canceled"
)

// IsTerminal reports whether a stored status holds no copy.
func IsTerminal(status string) bool {
	return status == StatusReturned || status == StatusCanceled
}

type BorrowRequest struct {
	BookID        uint   `json:"book_id"`
	BorrowerName  string `json:"borrower_name" validate:"required,max=200"`
	BorrowerEmail string `json:"borrower_email" validate:"required,email"`
	CardNumber    string `json:"card_number" validate:"required,max=64"`
	Comments      string `json:"comments" validate:"max=500"`
}

type CreateBookRequest struct {
	Title           string  `json:"title" validate:"required,max=300"`
	ISBN            string  `json:"isbn"`
	Author          string  `json:"author" validate:"required,max=200"`
	Category        string  `json:"category" validate:"max=100"`
	Publisher       string  `json:"publisher" validate:"max=200"`
	Language        string  `json:"language" validate:"max=50"`
	Pages           int     `json:"pages" validate:"min=0"`
	PublicationYear int     `json:"publication_year"`
	Price           float64 `json:"price" validate:"min=0"`
	Description     string  `json:"description"`
	CopiesTotal     int     `json:"copies_total"`
	CopiesAvailable int     `json:"copies_available"`
}

type AdjustTotalsRequest struct {
	NewTotal int `json:"new_total"`
}
