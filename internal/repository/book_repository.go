package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/catalog-service/internal/domain"
)

// BookRepository defines persistence access for catalog entries.
type BookRepository interface {
	List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
	Create(ctx context.Context, book *domain.Book) error
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, id string) error
}

type bookRepository struct {
	db *sql.DB
}

// NewBookRepository returns a SQL-backed implementation.
func NewBookRepository(db *sql.DB) BookRepository {
	return &bookRepository{db: db}
}

const bookColumns = `id, title, author, isbn, price, description, cover_url, publication_year, category, created_at, updated_at`

func (r *bookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	var args []any

	switch {
	case filter.Category != "":
		query += ` WHERE category=$1`
		args = append(args, string(filter.Category))
	case strings.TrimSpace(filter.Author) != "":
		query += ` WHERE LOWER(author) LIKE $1 ESCAPE '\'`
		args = append(args, likePattern(filter.Author))
	case strings.TrimSpace(filter.Title) != "":
		query += ` WHERE LOWER(title) LIKE $1 ESCAPE '\'`
		args = append(args, likePattern(filter.Title))
	}
	query += ` ORDER BY title, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

func (r *bookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id=$1`

	book, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

func (r *bookRepository) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	const query = `SELECT COUNT(1) FROM books WHERE isbn=$1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, isbn).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	const query = `
        INSERT INTO books (id, title, author, isbn, price, description, cover_url, publication_year, category, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now().UTC()
	book.ID = uuid.NewString()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.ISBN,
		book.Price,
		book.Description,
		book.CoverURL,
		nullableInt(book.PublicationYear),
		string(book.Category),
		book.CreatedAt,
		book.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *bookRepository) Update(ctx context.Context, book *domain.Book) error {
	const query = `
        UPDATE books SET title=$1, author=$2, isbn=$3, price=$4, description=$5, cover_url=$6,
            publication_year=$7, category=$8, updated_at=$9
        WHERE id=$10`

	book.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.Price,
		book.Description,
		book.CoverURL,
		nullableInt(book.PublicationYear),
		string(book.Category),
		book.UpdatedAt,
		book.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return requireAffected(res)
}

func (r *bookRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*domain.Book, error) {
	var (
		book     domain.Book
		year     sql.NullInt64
		category string
	)
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Price,
		&book.Description,
		&book.CoverURL,
		&year,
		&category,
		&book.CreatedAt,
		&book.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		book.PublicationYear = &y
	}
	book.Category = domain.BookCategory(category)
	return &book, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func likePattern(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	term = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + term + "%"
}
