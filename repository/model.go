package repository

import (
	"time"

	"gorm.io/gorm"
)

type Book struct {
	gorm.Model
	Title           string  `gorm:"type:varchar(300);column:title;not null"`
	ISBN            string  `gorm:"type:varchar(13);column:isbn;index"`
	Author          string  `gorm:"type:varchar(200);column:author;not null"`
	Category        string  `gorm:"type:varchar(100);column:category"`
	Publisher       string  `gorm:"type:varchar(200);column:publisher"`
	Language        string  `gorm:"type:varchar(50);column:language"`
	Pages           int     `gorm:"type:int;column:pages"`
	PublicationYear int     `gorm:"type:int;column:publication_year"`
	Price           float64 `gorm:"type:decimal(8,2);column:price"`
	Description     string  `gorm:"type:text;column:description"`
	CopiesTotal     uint    `gorm:"type:int unsigned;column:copies_total;not null"`
	CopiesAvailable uint    `gorm:"type:int unsigned;column:copies_available;not null"`
}

type Loan struct {
	gorm.Model
	Reference     string     `gorm:"type:varchar(36);column:reference;uniqueIndex;not null"`
	BookID        uint       `gorm:"column:book_id;index;not null"`
	Book          Book       `gorm:"foreignKey:BookID"`
	BorrowerName  string     `gorm:"type:varchar(200);column:borrower_name;not null"`
	BorrowerEmail string     `gorm:"type:varchar(254);column:borrower_email;not null"`
	CardNumber    string     `gorm:"type:varchar(64);column:card_number;index;not null"`
	Comments      string     `gorm:"type:varchar(500);column:comments"`
	BorrowedAt    time.Time  `gorm:"column:borrowed_at;not null"`
	DueAt         time.Time  `gorm:"column:due_at;not null"`
	ReturnedAt    *time.Time `gorm:"column:returned_at"`
	Status        string     `gorm:"type:varchar(16);column:status;index;not null"`
}
