package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-test/deep"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spec-kit/catalog-service/internal/domain"
)

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../persistence/migrations/sqlite/001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// bookRepositories runs a test against every BookRepository implementation.
func bookRepositories(t *testing.T, fn func(t *testing.T, repo BookRepository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, NewBookRepository(newSQLiteDB(t))) })
	t.Run("memory", func(t *testing.T) { fn(t, NewInMemoryBookRepository()) })
}

func sampleBook(title, author, isbn string, category domain.BookCategory) *domain.Book {
	year := 1862
	return &domain.Book{
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		Price:           12.5,
		Description:     "a classic",
		PublicationYear: &year,
		Category:        category,
	}
}

func TestBookRepositoryCRUD(t *testing.T) {
	bookRepositories(t, func(t *testing.T, repo BookRepository) {
		ctx := context.Background()
		book := sampleBook("Les Misérables", "Victor Hugo", "978-2070409228", domain.BookCategoryRoman)

		if err := repo.Create(ctx, book); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if book.ID == "" {
			t.Fatalf("expected id to be assigned")
		}

		got, err := repo.GetByID(ctx, book.ID)
		if err != nil {
			t.Fatalf("GetByID() error: %v", err)
		}
		if diff := deep.Equal(withoutTimes(got), withoutTimes(book)); diff != nil {
			t.Fatalf("stored book differs: %v", diff)
		}

		exists, err := repo.ExistsByISBN(ctx, book.ISBN)
		if err != nil || !exists {
			t.Fatalf("ExistsByISBN() = %v, %v", exists, err)
		}

		book.Price = 9.99
		book.PublicationYear = nil
		if err := repo.Update(ctx, book); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		got, err = repo.GetByID(ctx, book.ID)
		if err != nil {
			t.Fatalf("GetByID() error: %v", err)
		}
		if got.Price != 9.99 || got.PublicationYear != nil {
			t.Fatalf("update not applied: %+v", got)
		}

		if err := repo.Delete(ctx, book.ID); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if _, err := repo.GetByID(ctx, book.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestBookRepositoryMissing(t *testing.T) {
	bookRepositories(t, func(t *testing.T, repo BookRepository) {
		ctx := context.Background()
		ghost := sampleBook("Ghost", "Nobody", "978-0000000000", domain.BookCategoryEssai)
		ghost.ID = "00000000-0000-0000-0000-000000000000"

		if err := repo.Update(ctx, ghost); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Update() expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, ghost.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Delete() expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookRepositoryDuplicateISBN(t *testing.T) {
	bookRepositories(t, func(t *testing.T, repo BookRepository) {
		ctx := context.Background()
		if err := repo.Create(ctx, sampleBook("Original", "Author One", "978-1111111111", domain.BookCategoryRoman)); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		err := repo.Create(ctx, sampleBook("Copy", "Author Two", "978-1111111111", domain.BookCategoryRoman))
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		other := sampleBook("Other", "Author Three", "978-2222222222", domain.BookCategoryRoman)
		if err := repo.Create(ctx, other); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		other.ISBN = "978-1111111111"
		if err := repo.Update(ctx, other); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("Update() expected ErrDuplicate, got %v", err)
		}
	})
}

func TestBookRepositoryList(t *testing.T) {
	bookRepositories(t, func(t *testing.T, repo BookRepository) {
		ctx := context.Background()
		for _, b := range []*domain.Book{
			sampleBook("Notre-Dame de Paris", "Victor Hugo", "978-1000000001", domain.BookCategoryRoman),
			sampleBook("Les Contemplations", "Victor Hugo", "978-1000000002", domain.BookCategoryPoesie),
			sampleBook("Le Cid", "Pierre Corneille", "978-1000000003", domain.BookCategoryTheatre),
			sampleBook("100% Paris", "Anon_ymous", "978-1000000004", domain.BookCategoryEssai),
		} {
			if err := repo.Create(ctx, b); err != nil {
				t.Fatalf("Create() error: %v", err)
			}
		}

		tests := []struct {
			name   string
			filter domain.BookFilter
			want   []string
		}{
			{"all", domain.BookFilter{}, []string{"100% Paris", "Le Cid", "Les Contemplations", "Notre-Dame de Paris"}},
			{"category", domain.BookFilter{Category: domain.BookCategoryPoesie}, []string{"Les Contemplations"}},
			{"author case-insensitive", domain.BookFilter{Author: "victor"}, []string{"Les Contemplations", "Notre-Dame de Paris"}},
			{"title substring", domain.BookFilter{Title: "PARIS"}, []string{"100% Paris", "Notre-Dame de Paris"}},
			{"category wins over author", domain.BookFilter{Category: domain.BookCategoryTheatre, Author: "hugo"}, []string{"Le Cid"}},
			{"wildcards are literal", domain.BookFilter{Title: "0%"}, []string{"100% Paris"}},
			{"underscore is literal", domain.BookFilter{Author: "n_y"}, []string{"100% Paris"}},
			{"no match", domain.BookFilter{Title: "zzz"}, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				books, err := repo.List(ctx, tt.filter)
				if err != nil {
					t.Fatalf("List() error: %v", err)
				}
				titles := make([]string, 0, len(books))
				for _, b := range books {
					titles = append(titles, b.Title)
				}
				if diff := deep.Equal(titles, tt.want); diff != nil {
					t.Fatalf("List(%+v): %v", tt.filter, diff)
				}
			})
		}
	})
}

func withoutTimes(b *domain.Book) domain.Book {
	out := *b
	out.CreatedAt = time.Time{}
	out.UpdatedAt = time.Time{}
	return out
}
