package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/catalog-service/internal/api/dto"
	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/domain"
	"github.com/spec-kit/catalog-service/internal/service"
	"github.com/spec-kit/catalog-service/pkg/util/errorutil"
)

// BooksHandler manages catalog endpoints.
type BooksHandler struct {
	service *service.CatalogService
}

// NewBooksHandler constructs handler.
func NewBooksHandler(catalog *service.CatalogService) *BooksHandler {
	return &BooksHandler{service: catalog}
}

// List GET /api/books?category=&author=&title=.
func (h *BooksHandler) List(c *fiber.Ctx) error {
	filter, err := parseBookFilter(c)
	if err != nil {
		return err
	}
	books, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BooksFromDomain(books)})
}

// Get GET /api/books/:id.
func (h *BooksHandler) Get(c *fiber.Ctx) error {
	book, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BookFromDomain(book)})
}

// Create POST /api/books.
func (h *BooksHandler) Create(c *fiber.Ctx) error {
	req, err := parseBookRequest(c)
	if err != nil {
		return err
	}
	book, err := h.service.Create(c.UserContext(), auth.CurrentIdentity(c), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.BookFromDomain(book)})
}

// Update PUT /api/books/:id.
func (h *BooksHandler) Update(c *fiber.Ctx) error {
	req, err := parseBookRequest(c)
	if err != nil {
		return err
	}
	book, err := h.service.Update(c.UserContext(), auth.CurrentIdentity(c), c.Params("id"), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BookFromDomain(book)})
}

// Delete DELETE /api/books/:id.
func (h *BooksHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), auth.CurrentIdentity(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseBookRequest(c *fiber.Ctx) (*dto.BookRequest, error) {
	var req dto.BookRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errorutil.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func parseBookFilter(c *fiber.Ctx) (domain.BookFilter, error) {
	filter := domain.BookFilter{
		Author: strings.TrimSpace(c.Query("author")),
		Title:  strings.TrimSpace(c.Query("title")),
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category := domain.BookCategory(strings.ToUpper(raw))
		if !category.Valid() {
			return filter, errorutil.NewValidationError("unknown category", map[string]any{"category": raw})
		}
		filter.Category = category
	}
	return filter, nil
}
