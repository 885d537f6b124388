package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/catalog-service/internal/domain"
)

// BookRequest is the payload for creating or replacing a catalog entry.
type BookRequest struct {
	Title           string  `json:"title" validate:"required,min=2,max=200"`
	Author          string  `json:"author" validate:"required,min=2,max=100"`
	ISBN            string  `json:"isbn" validate:"required,catalog_isbn"`
	Price           float64 `json:"price" validate:"gte=0"`
	Description     string  `json:"description" validate:"max=1000"`
	CoverURL        string  `json:"cover_url" validate:"omitempty,url"`
	PublicationYear *int    `json:"publication_year" validate:"omitempty,min=1450,max=2100"`
	Category        string  `json:"category" validate:"required,oneof=ROMAN POESIE THEATRE ESSAI BIOGRAPHIE JEUNESSE"`
}

// ToDomain converts the request into a book without identity or timestamps.
func (r BookRequest) ToDomain() *domain.Book {
	return &domain.Book{
		Title:           strings.TrimSpace(r.Title),
		Author:          strings.TrimSpace(r.Author),
		ISBN:            r.ISBN,
		Price:           r.Price,
		Description:     r.Description,
		CoverURL:        r.CoverURL,
		PublicationYear: r.PublicationYear,
		Category:        domain.BookCategory(r.Category),
	}
}

// BookResponse is the public representation of a catalog entry.
type BookResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Price           float64   `json:"price"`
	Description     string    `json:"description,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	PublicationYear *int      `json:"publication_year,omitempty"`
	Category        string    `json:"category"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BookFromDomain renders a book for clients.
func BookFromDomain(b *domain.Book) BookResponse {
	return BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Price:           b.Price,
		Description:     b.Description,
		CoverURL:        b.CoverURL,
		PublicationYear: b.PublicationYear,
		Category:        string(b.Category),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// BooksFromDomain renders a list of books.
func BooksFromDomain(books []domain.Book) []BookResponse {
	items := make([]BookResponse, 0, len(books))
	for i := range books {
		items = append(items, BookFromDomain(&books[i]))
	}
	return items
}
