package domain

import "time"

// BookCategory classifies catalog entries.
type BookCategory string

const (
	BookCategoryRoman      BookCategory = "ROMAN"
	BookCategoryPoesie     BookCategory = "POESIE"
	BookCategoryTheatre    BookCategory = "THEATRE"
	BookCategoryEssai      BookCategory = "ESSAI"
	BookCategoryBiographie BookCategory = "BIOGRAPHIE"
	BookCategoryJeunesse   BookCategory = "JEUNESSE"
)

// BookCategories lists every known category.
var BookCategories = []BookCategory{
	BookCategoryRoman,
	BookCategoryPoesie,
	BookCategoryTheatre,
	BookCategoryEssai,
	BookCategoryBiographie,
	BookCategoryJeunesse,
}

// Valid reports whether c is a known category.
func (c BookCategory) Valid() bool {
	for _, known := range BookCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Book is a catalog entry.
type Book struct {
	ID              string
	Title           string
	Author          string
	ISBN            string
	Price           float64
	Description     string
	CoverURL        string
	PublicationYear *int
	Category        BookCategory
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookFilter narrows catalog listings. Category wins over Author, which wins
// over Title; an empty filter lists everything.
type BookFilter struct {
	Category BookCategory
	Author   string
	Title    string
}
