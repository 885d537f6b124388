package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/domain"
	"github.com/spec-kit/catalog-service/internal/events"
	"github.com/spec-kit/catalog-service/internal/repository"
	"github.com/spec-kit/catalog-service/pkg/util/errorutil"
)

// Roles required by catalog mutations. Reads require nothing.
const (
	RoleToCreateBook = domain.RoleAdmin
	RoleToUpdateBook = domain.RoleAdmin
	RoleToDeleteBook = domain.RoleAdmin
)

// BookCache caches single catalog entries. Get returns (nil, nil) on a miss.
type BookCache interface {
	Get(ctx context.Context, id string) (*domain.Book, error)
	Set(ctx context.Context, book *domain.Book) error
	Invalidate(ctx context.Context, id string) error
}

// CatalogService coordinates catalog reads and admin-only mutations.
type CatalogService struct {
	books      repository.BookRepository
	cache      BookCache
	dispatcher events.Dispatcher
	clock      abtime.AbstractTime
	logger     *zap.Logger
}

// CatalogDependencies bundles collaborators for the catalog service. Cache,
// Dispatcher and Clock are optional.
type CatalogDependencies struct {
	Books      repository.BookRepository
	Cache      BookCache
	Dispatcher events.Dispatcher
	Clock      abtime.AbstractTime
	Logger     *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(deps CatalogDependencies) *CatalogService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &CatalogService{
		books:      deps.Books,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// List returns the catalog entries matching filter.
func (s *CatalogService) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	return s.books.List(ctx, filter)
}

// Get returns a single entry, consulting the cache first.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Book, error) {
	if err := checkBookID(id); err != nil {
		return nil, err
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("book cache read", zap.String("book_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, mapBookError(err, id, "")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, book); err != nil {
			s.logger.Warn("book cache write", zap.String("book_id", id), zap.Error(err))
		}
	}
	return book, nil
}

// Create adds a catalog entry. The ISBN must not already exist.
func (s *CatalogService) Create(ctx context.Context, actor *domain.Identity, book *domain.Book) (*domain.Book, error) {
	if err := auth.Authorize(actor, RoleToCreateBook).Err(); err != nil {
		return nil, err
	}
	exists, err := s.books.ExistsByISBN(ctx, book.ISBN)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, isbnConflict(book.ISBN)
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, mapBookError(err, "", book.ISBN)
	}
	s.publish(ctx, events.EventBookCreated, book, actor)
	return book, nil
}

// Update replaces every field of an existing entry.
func (s *CatalogService) Update(ctx context.Context, actor *domain.Identity, id string, book *domain.Book) (*domain.Book, error) {
	if err := auth.Authorize(actor, RoleToUpdateBook).Err(); err != nil {
		return nil, err
	}
	if err := checkBookID(id); err != nil {
		return nil, err
	}
	existing, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, mapBookError(err, id, "")
	}
	book.ID = existing.ID
	if err := s.books.Update(ctx, book); err != nil {
		return nil, mapBookError(err, id, book.ISBN)
	}
	book.CreatedAt = existing.CreatedAt
	s.invalidate(ctx, id)
	s.publish(ctx, events.EventBookUpdated, book, actor)
	return book, nil
}

// Delete removes an entry.
func (s *CatalogService) Delete(ctx context.Context, actor *domain.Identity, id string) error {
	if err := auth.Authorize(actor, RoleToDeleteBook).Err(); err != nil {
		return err
	}
	if err := checkBookID(id); err != nil {
		return err
	}
	if err := s.books.Delete(ctx, id); err != nil {
		return mapBookError(err, id, "")
	}
	s.invalidate(ctx, id)
	s.publish(ctx, events.EventBookDeleted, &domain.Book{ID: id}, actor)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("book cache invalidate", zap.String("book_id", id), zap.Error(err))
	}
}

func (s *CatalogService) publish(ctx context.Context, eventType events.EventType, book *domain.Book, actor *domain.Identity) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Resource:  book.ID,
		Actor:     events.ActorFrom(actor),
		Timestamp: s.clock.Now().UTC(),
		Payload:   events.BookChangedPayload{ISBN: book.ISBN, Title: book.Title},
	})
	if err != nil {
		s.logger.Warn("publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// checkBookID rejects ids that cannot name a stored entry. Entries are keyed
// by UUID in the canonical 36-character form, so anything else is reported
// as not found.
func checkBookID(id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return errorutil.NewNotFound("book", map[string]any{"id": id})
	}
	return nil
}

func mapBookError(err error, id, isbn string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound("book", map[string]any{"id": id})
	case errors.Is(err, repository.ErrDuplicate):
		return isbnConflict(isbn)
	default:
		return err
	}
}

func isbnConflict(isbn string) error {
	return errorutil.NewConflict("a book with this ISBN already exists", map[string]any{"isbn": isbn})
}
