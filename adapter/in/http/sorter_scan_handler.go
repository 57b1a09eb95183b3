// Package http wires the fiber routes onto the sorter services.
package http

import (
	"errors"

	"sorter_server/core/domain"
	"sorter_server/core/service/scan"

	"github.com/gofiber/fiber/v2"
)

// ScanHandler exposes the continuous scan loop and one-shot rescans.
type ScanHandler struct {
	scan   *scan.ScanController
	rescan *scan.RescanController
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(scanCtrl *scan.ScanController, rescanCtrl *scan.RescanController) *ScanHandler {
	return &ScanHandler{scan: scanCtrl, rescan: rescanCtrl}
}

// Register registers scan routes.
func (h *ScanHandler) Register(app fiber.Router) {
	app.Post("/scan/start", h.Start)
	app.Post("/scan/stop", h.Stop)
	app.Get("/scan/status", h.Status)
	app.Post("/rescan", h.Rescan)
	app.Post("/rescan/stop", h.RescanStop)
	app.Get("/rescan/status", h.RescanStatus)
}

type scanRequest struct {
	Folders []string `json:"folders"`
}

// Start launches the poll loop. Returns started=false if one is running.
func (h *ScanHandler) Start(c *fiber.Ctx) error {
	var req scanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}
	started := h.scan.Start(req.Folders)
	return c.JSON(fiber.Map{"ok": true, "started": started, "status": h.scan.Status()})
}

// Stop stops the poll loop and waits for the current pass to finish.
func (h *ScanHandler) Stop(c *fiber.Ctx) error {
	stopped := h.scan.Stop()
	return c.JSON(fiber.Map{"ok": true, "stopped": stopped, "status": h.scan.Status()})
}

// Status reports the loop state.
func (h *ScanHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.scan.Status())
}

// Rescan runs a single scan pass synchronously and reports how many new
// suggestions it produced.
func (h *ScanHandler) Rescan(c *fiber.Ctx) error {
	var req scanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}

	count, err := h.rescan.Run(c.Context(), req.Folders)
	switch {
	case errors.Is(err, domain.ErrScanBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"ok":    false,
			"error": "a rescan is already running",
		})
	case errors.Is(err, domain.ErrScanCancelled):
		return c.JSON(fiber.Map{"ok": true, "cancelled": true, "new_suggestions": count})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"ok": true, "new_suggestions": count})
}

// RescanStop cancels a running rescan.
func (h *ScanHandler) RescanStop(c *fiber.Ctx) error {
	stopped := h.rescan.Stop()
	return c.JSON(fiber.Map{"ok": true, "stopped": stopped, "status": h.rescan.Status()})
}

// RescanStatus reports the last or current rescan.
func (h *ScanHandler) RescanStatus(c *fiber.Ctx) error {
	return c.JSON(h.rescan.Status())
}
