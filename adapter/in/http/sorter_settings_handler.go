package http

import (
	"sorter_server/core/domain"
	"sorter_server/core/port/out"
	"sorter_server/core/service/settings"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler exposes the runtime overrides and the mailbox folder list.
type SettingsHandler struct {
	resolver *settings.Resolver
	mailbox  out.Mailbox
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(resolver *settings.Resolver, mailbox out.Mailbox) *SettingsHandler {
	return &SettingsHandler{resolver: resolver, mailbox: mailbox}
}

// Register registers settings routes.
func (h *SettingsHandler) Register(app fiber.Router) {
	app.Get("/mode", h.GetMode)
	app.Post("/mode", h.SetMode)
	app.Get("/settings", h.GetSettings)
	app.Post("/settings/module", h.SetModule)
	app.Post("/settings/model", h.SetModel)
	app.Post("/settings/tags", h.SetTags)
	app.Post("/settings/folders", h.SetFolders)
	app.Get("/folders", h.ListFolders)
}

// GetMode returns the effective move mode.
func (h *SettingsHandler) GetMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"mode": h.resolver.MoveMode(c.Context())})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// SetMode overrides the move mode (AUTO or CONFIRM).
func (h *SettingsHandler) SetMode(c *fiber.Ctx) error {
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.resolver.SetMoveMode(c.Context(), req.Mode); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "mode": h.resolver.MoveMode(c.Context())})
}

// GetSettings returns the effective runtime configuration.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	ctx := c.Context()
	tags := h.resolver.MailboxTags(ctx)
	return c.JSON(fiber.Map{
		"mode":              h.resolver.MoveMode(ctx),
		"analysis_module":   h.resolver.AnalysisModule(ctx),
		"classifier_model":  h.resolver.ClassifierModel(ctx),
		"monitored_folders": h.resolver.MonitoredFolders(ctx),
		"poll_interval_sec": int(h.resolver.PollInterval(ctx).Seconds()),
		"tags": fiber.Map{
			"protected": tags.Protected,
			"processed": tags.Processed,
			"ai_prefix": tags.AIPrefix,
		},
	})
}

type moduleRequest struct {
	Module string `json:"module"`
}

// SetModule overrides the analysis module (full, keyword, llm, off).
func (h *SettingsHandler) SetModule(c *fiber.Ctx) error {
	var req moduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.resolver.SetAnalysisModule(c.Context(), req.Module); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "module": h.resolver.AnalysisModule(c.Context())})
}

type modelRequest struct {
	Model string `json:"model"`
}

// SetModel overrides the chat model used for classification. The LLM
// client resolves the model per request, so the change applies to the
// next classification without a restart.
func (h *SettingsHandler) SetModel(c *fiber.Ctx) error {
	var req modelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.resolver.SetClassifierModel(c.Context(), req.Model); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "model": h.resolver.ClassifierModel(c.Context())})
}

type tagsRequest struct {
	Protected string `json:"protected"`
	Processed string `json:"processed"`
	AIPrefix  string `json:"ai_prefix"`
}

// SetTags overrides the protected, processed and AI-prefix tag names.
func (h *SettingsHandler) SetTags(c *fiber.Ctx) error {
	var req tagsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	tags := domain.MailboxTags{Protected: req.Protected, Processed: req.Processed, AIPrefix: req.AIPrefix}
	if err := h.resolver.SetMailboxTags(c.Context(), tags); err != nil {
		return respondError(c, err)
	}
	current := h.resolver.MailboxTags(c.Context())
	return c.JSON(fiber.Map{"ok": true, "tags": fiber.Map{
		"protected": current.Protected,
		"processed": current.Processed,
		"ai_prefix": current.AIPrefix,
	}})
}

type foldersRequest struct {
	Folders []string `json:"folders"`
}

// SetFolders overrides the monitored folder list.
func (h *SettingsHandler) SetFolders(c *fiber.Ctx) error {
	var req foldersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.resolver.SetMonitoredFolders(c.Context(), req.Folders); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "folders": h.resolver.MonitoredFolders(c.Context())})
}

// ListFolders returns every mailbox folder, delimiter normalized to "/".
func (h *SettingsHandler) ListFolders(c *fiber.Ctx) error {
	folders, err := h.mailbox.ListFolders(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"folders": folders})
}
