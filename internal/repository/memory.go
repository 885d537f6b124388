package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/catalog-service/internal/domain"
)

// InMemoryCredentialStore keeps credentials in process memory. It backs
// STORE_DRIVER=memory and tests.
type InMemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]domain.Credential
}

// NewInMemoryCredentialStore returns an empty store.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{creds: make(map[string]domain.Credential)}
}

func (s *InMemoryCredentialStore) FindByUsername(_ context.Context, username string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

func (s *InMemoryCredentialStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.creds[username]
	return ok, nil
}

func (s *InMemoryCredentialStore) Create(_ context.Context, username, passwordHash string, role domain.Role) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[username]; ok {
		return nil, ErrDuplicate
	}
	cred := domain.Credential{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.creds[username] = cred
	return &cred, nil
}

// Delete removes a credential. Only operators and tests use it; the service
// itself never deletes credentials.
func (s *InMemoryCredentialStore) Delete(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, username)
}

// InMemoryBookRepository keeps catalog entries in process memory.
type InMemoryBookRepository struct {
	mu    sync.RWMutex
	books map[string]domain.Book
}

// NewInMemoryBookRepository returns an empty repository.
func NewInMemoryBookRepository() *InMemoryBookRepository {
	return &InMemoryBookRepository{books: make(map[string]domain.Book)}
}

func (r *InMemoryBookRepository) List(_ context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Book, 0, len(r.books))
	for _, book := range r.books {
		if matchesFilter(book, filter) {
			out = append(out, book)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *InMemoryBookRepository) GetByID(_ context.Context, id string) (*domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &book, nil
}

func (r *InMemoryBookRepository) ExistsByISBN(_ context.Context, isbn string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isbnTakenLocked(isbn, ""), nil
}

func (r *InMemoryBookRepository) Create(_ context.Context, book *domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isbnTakenLocked(book.ISBN, "") {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	book.ID = uuid.NewString()
	book.CreatedAt = now
	book.UpdatedAt = now
	r.books[book.ID] = *book
	return nil
}

func (r *InMemoryBookRepository) Update(_ context.Context, book *domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.books[book.ID]
	if !ok {
		return ErrNotFound
	}
	if r.isbnTakenLocked(book.ISBN, book.ID) {
		return ErrDuplicate
	}
	book.CreatedAt = existing.CreatedAt
	book.UpdatedAt = time.Now().UTC()
	r.books[book.ID] = *book
	return nil
}

func (r *InMemoryBookRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[id]; !ok {
		return ErrNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *InMemoryBookRepository) isbnTakenLocked(isbn, exceptID string) bool {
	for id, book := range r.books {
		if id != exceptID && book.ISBN == isbn {
			return true
		}
	}
	return false
}

func matchesFilter(book domain.Book, filter domain.BookFilter) bool {
	switch {
	case filter.Category != "":
		return book.Category == filter.Category
	case strings.TrimSpace(filter.Author) != "":
		return containsFold(book.Author, filter.Author)
	case strings.TrimSpace(filter.Title) != "":
		return containsFold(book.Title, filter.Title)
	default:
		return true
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
