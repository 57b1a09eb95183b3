package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"sorter_server/core/domain"
	"sorter_server/pkg/logger"
)

// RescanController runs a cancellable one-shot scan. Run is mutually
// exclusive with itself: a second Run while one is active returns
// ErrScanBusy without starting anything; Stop cancels the in-flight run,
// which then surfaces ErrScanCancelled to its original caller.
type RescanController struct {
	scanner Runner
	log     *logger.Logger

	mu     sync.Mutex // guards run creation and teardown
	active bool
	cancel context.CancelFunc

	statusMu sync.Mutex
	status   domain.RescanStatus
}

func NewRescanController(scanner Runner) *RescanController {
	return &RescanController{
		scanner: scanner,
		log:     logger.WithField("component", "rescan_controller"),
	}
}

// Run executes one scan pass over the given folders and returns the
// handled-message count.
func (c *RescanController) Run(ctx context.Context, folders []string) (int, error) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return 0, domain.ErrScanBusy
	}
	normalized := NormalizeFolders(folders)
	runCtx, cancel := context.WithCancel(ctx)
	c.active = true
	c.cancel = cancel
	c.mu.Unlock()

	started := time.Now().UTC()
	c.statusMu.Lock()
	c.status = domain.RescanStatus{
		Active:    true,
		Folders:   normalized,
		StartedAt: &started,
	}
	c.statusMu.Unlock()

	count, err := c.scanner.ScanOnce(runCtx, normalized)
	cancelled := errors.Is(err, context.Canceled) || runCtx.Err() != nil

	finished := time.Now().UTC()
	c.statusMu.Lock()
	c.status.Active = false
	c.status.FinishedAt = &finished
	switch {
	case cancelled:
		c.status.Cancelled = true
	case err != nil:
		c.status.LastError = err.Error()
	default:
		c.status.LastResultCount = &count
	}
	c.statusMu.Unlock()

	c.mu.Lock()
	c.active = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()

	if cancelled {
		c.log.Debug("one-shot scan cancelled")
		return count, domain.ErrScanCancelled
	}
	if err != nil {
		c.log.WithError(err).Error("one-shot scan failed")
		return count, err
	}
	return count, nil
}

// Stop cancels the in-flight run. Returns false when nothing is running.
func (c *RescanController) Stop() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return false
	}

	c.statusMu.Lock()
	c.status.Cancelled = true
	c.statusMu.Unlock()

	cancel()
	return true
}

// Status returns a snapshot of the controller state.
func (c *RescanController) Status() domain.RescanStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	status := c.status
	status.Folders = append([]string(nil), c.status.Folders...)
	return status
}
