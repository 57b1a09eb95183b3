package http

import (
	"sorter_server/core/domain"
	"sorter_server/core/service/catalog"

	"github.com/gofiber/fiber/v2"
)

// CatalogHandler exposes the folder catalog document.
type CatalogHandler struct {
	store *catalog.Store
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store *catalog.Store) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// Register registers catalog routes.
func (h *CatalogHandler) Register(app fiber.Router) {
	app.Get("/catalog", h.Get)
	app.Put("/catalog", h.Put)
}

// Get returns the catalog plus the derived folder paths.
func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	idx := h.store.Index(c.Context())
	return c.JSON(fiber.Map{
		"catalog": h.store.Catalog(c.Context()),
		"paths":   idx.Paths(),
	})
}

type catalogUpdateRequest struct {
	Catalog domain.FolderCatalog `json:"catalog"`
}

// Put replaces the catalog document and rebuilds the index.
func (h *CatalogHandler) Put(c *fiber.Ctx) error {
	var req catalogUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.store.Update(c.Context(), req.Catalog); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "paths": h.store.Index(c.Context()).Paths()})
}
