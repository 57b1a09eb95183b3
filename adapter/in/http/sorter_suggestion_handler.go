package http

import (
	"sorter_server/core/service/suggestion"
	"sorter_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// SuggestionHandler exposes stored classification results and decisions.
type SuggestionHandler struct {
	service *suggestion.Service
}

// NewSuggestionHandler creates a new SuggestionHandler.
func NewSuggestionHandler(service *suggestion.Service) *SuggestionHandler {
	return &SuggestionHandler{service: service}
}

// Register registers suggestion routes.
func (h *SuggestionHandler) Register(app fiber.Router) {
	app.Get("/suggestions", h.List)
	app.Get("/suggestions/overview", h.Overview)
	app.Get("/suggestions/:uid", h.Get)
	app.Post("/suggestions/:uid/decision", h.Decide)
}

// List returns suggestions, open ones only unless ?all=true.
func (h *SuggestionHandler) List(c *fiber.Ctx) error {
	includeAll := c.QueryBool("all", false)
	suggestions, err := h.service.List(c.Context(), includeAll)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"suggestions": suggestions, "count": len(suggestions)})
}

// Overview returns the cached aggregate view.
func (h *SuggestionHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.service.Overview(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

// Get returns one suggestion by message UID.
func (h *SuggestionHandler) Get(c *fiber.Ctx) error {
	found, err := h.service.Find(c.Context(), c.Params("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(found)
}

// Decide records an accept or reject verdict, moving the message in
// CONFIRM mode.
func (h *SuggestionHandler) Decide(c *fiber.Ctx) error {
	var req suggestion.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	result, err := h.service.Decide(c.Context(), c.Params("uid"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func respondError(c *fiber.Ctx, err error) error {
	status := apperr.GetHTTPStatus(err)
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
