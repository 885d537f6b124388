package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/abtime"

	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/cache"
	"github.com/spec-kit/catalog-service/internal/domain"
	"github.com/spec-kit/catalog-service/internal/events"
	"github.com/spec-kit/catalog-service/internal/repository"
	"github.com/spec-kit/catalog-service/pkg/util/errorutil"
)

var (
	adminIdentity    = &domain.Identity{Username: "root", Role: domain.RoleAdmin}
	standardIdentity = &domain.Identity{Username: "alice", Role: domain.RoleStandard}
)

func newBook(isbn string) *domain.Book {
	return &domain.Book{
		Title:    "Le Rouge et le Noir",
		Author:   "Stendhal",
		ISBN:     isbn,
		Price:    7.9,
		Category: domain.BookCategoryRoman,
	}
}

func statusOf(err error) int {
	return errorutil.ToDomainError(err).HTTPStatus
}

func TestCatalogMutationsRequireAdmin(t *testing.T) {
	svc := NewCatalogService(CatalogDependencies{Books: repository.NewInMemoryBookRepository()})
	ctx := context.Background()

	for _, tt := range []struct {
		name     string
		identity *domain.Identity
		want     error
	}{
		{"anonymous", nil, auth.ErrUnauthenticated},
		{"standard", standardIdentity, auth.ErrInsufficientRole},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.identity, newBook("978-0000000001")); !errors.Is(err, tt.want) {
				t.Fatalf("Create(): expected %v, got %v", tt.want, err)
			}
			if _, err := svc.Update(ctx, tt.identity, "any", newBook("978-0000000001")); !errors.Is(err, tt.want) {
				t.Fatalf("Update(): expected %v, got %v", tt.want, err)
			}
			if err := svc.Delete(ctx, tt.identity, "any"); !errors.Is(err, tt.want) {
				t.Fatalf("Delete(): expected %v, got %v", tt.want, err)
			}
		})
	}

	books, err := svc.List(ctx, domain.BookFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("denied mutations must not change the catalog")
	}
}

func TestCatalogAdminLifecycle(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewCatalogService(CatalogDependencies{
		Books:      repository.NewInMemoryBookRepository(),
		Dispatcher: dispatcher,
	})
	ctx := context.Background()

	created, err := svc.Create(ctx, adminIdentity, newBook("978-2070360024"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := svc.Create(ctx, adminIdentity, newBook("978-2070360024")); statusOf(err) != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate ISBN, got %v", err)
	}

	update := newBook("978-2070360024")
	update.Price = 5
	updated, err := svc.Update(ctx, adminIdentity, created.ID, update)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.ID != created.ID || updated.Price != 5 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := svc.Update(ctx, adminIdentity, "missing", newBook("978-9999999999")); statusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.Delete(ctx, adminIdentity, created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := svc.Delete(ctx, adminIdentity, created.ID); statusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); statusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	got := dispatcher.types()
	want := []events.EventType{events.EventBookCreated, events.EventBookUpdated, events.EventBookDeleted}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
	if dispatcher.events[0].Actor.Username != "root" {
		t.Fatalf("expected actor root, got %+v", dispatcher.events[0].Actor)
	}
}

func TestCatalogGetIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := repository.NewInMemoryBookRepository()
	svc := NewCatalogService(CatalogDependencies{
		Books: repo,
		Cache: cache.NewBookCache(client, time.Minute),
	})
	ctx := context.Background()

	created, err := svc.Create(ctx, adminIdentity, newBook("978-2070360025"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !mr.Exists("catalog:book:" + created.ID) {
		t.Fatalf("expected entry to be cached after read")
	}

	update := newBook("978-2070360025")
	update.Title = "Lucien Leuwen"
	if _, err := svc.Update(ctx, adminIdentity, created.ID, update); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if mr.Exists("catalog:book:" + created.ID) {
		t.Fatalf("expected update to invalidate the cache")
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Title != "Lucien Leuwen" {
		t.Fatalf("expected fresh title, got %q", got.Title)
	}
}

func TestCatalogGetSurvivesCacheOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewCatalogService(CatalogDependencies{
		Books: repository.NewInMemoryBookRepository(),
		Cache: cache.NewBookCache(client, time.Minute),
	})
	ctx := context.Background()

	created, err := svc.Create(ctx, adminIdentity, newBook("978-2070360026"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	mr.SetError("LOADING")
	if _, err := svc.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get() must fall back to the store, got %v", err)
	}
}

// castFailingBooks behaves like a store whose id column rejects anything that
// is not a UUID.
type castFailingBooks struct {
	repository.BookRepository
	calls int
}

func (r *castFailingBooks) GetByID(context.Context, string) (*domain.Book, error) {
	r.calls++
	return nil, errors.New(`invalid input syntax for type uuid: "abc"`)
}

func (r *castFailingBooks) Delete(context.Context, string) error {
	r.calls++
	return errors.New(`invalid input syntax for type uuid: "abc"`)
}

func TestCatalogRejectsNonUUIDIDs(t *testing.T) {
	books := &castFailingBooks{BookRepository: repository.NewInMemoryBookRepository()}
	svc := NewCatalogService(CatalogDependencies{Books: books})
	ctx := context.Background()

	for _, id := range []string{"abc", "", "123", "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8", "6ba7b8109dad11d180b400c04fd430c8"} {
		if _, err := svc.Get(ctx, id); statusOf(err) != http.StatusNotFound {
			t.Fatalf("Get(%q): expected not found, got %v", id, err)
		}
		if _, err := svc.Update(ctx, adminIdentity, id, newBook("978-0000000001")); statusOf(err) != http.StatusNotFound {
			t.Fatalf("Update(%q): expected not found, got %v", id, err)
		}
		if err := svc.Delete(ctx, adminIdentity, id); statusOf(err) != http.StatusNotFound {
			t.Fatalf("Delete(%q): expected not found, got %v", id, err)
		}
	}
	if books.calls != 0 {
		t.Fatalf("expected the store not to be queried, got %d calls", books.calls)
	}

	if _, err := svc.Update(ctx, standardIdentity, "abc", newBook("978-0000000001")); !errors.Is(err, auth.ErrInsufficientRole) {
		t.Fatalf("role must be checked before the id, got %v", err)
	}
}

func TestCatalogEventsUseInjectedClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := abtime.NewManualAtTime(at)
	dispatcher := &recordingDispatcher{}
	svc := NewCatalogService(CatalogDependencies{
		Books:      repository.NewInMemoryBookRepository(),
		Dispatcher: dispatcher,
		Clock:      clock,
	})
	ctx := context.Background()

	created, err := svc.Create(ctx, adminIdentity, newBook("978-2070360027"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	clock.Advance(time.Minute)
	if err := svc.Delete(ctx, adminIdentity, created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if len(dispatcher.events) != 2 {
		t.Fatalf("expected two events, got %d", len(dispatcher.events))
	}
	if got := dispatcher.events[0].Timestamp; !got.Equal(at) {
		t.Fatalf("expected create event at %v, got %v", at, got)
	}
	if got := dispatcher.events[1].Timestamp; !got.Equal(at.Add(time.Minute)) {
		t.Fatalf("expected delete event at %v, got %v", at.Add(time.Minute), got)
	}
}
