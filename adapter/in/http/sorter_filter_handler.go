package http

import (
	"sorter_server/core/domain"
	"sorter_server/core/service/filter"

	"github.com/gofiber/fiber/v2"
)

// FilterHandler exposes the keyword-filter rule document.
type FilterHandler struct {
	store *filter.Store
}

// NewFilterHandler creates a new FilterHandler.
func NewFilterHandler(store *filter.Store) *FilterHandler {
	return &FilterHandler{store: store}
}

// Register registers filter routes.
func (h *FilterHandler) Register(app fiber.Router) {
	app.Get("/filters", h.Get)
	app.Put("/filters", h.Put)
}

// Get returns the active rules in evaluation order.
func (h *FilterHandler) Get(c *fiber.Ctx) error {
	rules := h.store.Rules(c.Context())
	return c.JSON(fiber.Map{"rules": rules, "count": len(rules)})
}

type filterUpdateRequest struct {
	Rules []domain.KeywordFilterRule `json:"rules"`
}

// Put replaces the rule set. Rules are normalized before persisting; rules
// without a target folder are dropped.
func (h *FilterHandler) Put(c *fiber.Ctx) error {
	var req filterUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.store.Update(c.Context(), req.Rules); err != nil {
		return respondError(c, err)
	}
	rules := h.store.Rules(c.Context())
	return c.JSON(fiber.Map{"ok": true, "rules": rules, "count": len(rules)})
}
