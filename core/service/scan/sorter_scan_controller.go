package scan

import (
	"context"
	"sync"
	"time"

	"sorter_server/core/domain"
	"sorter_server/core/service/settings"
	"sorter_server/pkg/logger"
)

// ScanController owns the continuous background poll loop. At most one
// loop runs at a time; Start on an active controller is a no-op.
type ScanController struct {
	scanner  Runner
	settings *settings.Resolver
	log      *logger.Logger

	mu     sync.Mutex // guards loop creation and teardown
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.Mutex
	status   domain.ScanStatus
}

func NewScanController(scanner Runner, resolver *settings.Resolver) *ScanController {
	return &ScanController{
		scanner:  scanner,
		settings: resolver,
		log:      logger.WithField("component", "scan_controller"),
	}
}

// Start launches the poll loop over the given folders (empty means the
// configured monitored folders). Returns false when a loop is already
// running.
func (c *ScanController) Start(folders []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}

	normalized := NormalizeFolders(folders)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.statusMu.Lock()
	c.status.Active = true
	c.status.Folders = normalized
	c.status.LastError = ""
	c.status.LastResultCount = nil
	c.status.PollInterval = c.settings.PollInterval(ctx)
	c.statusMu.Unlock()

	go c.run(ctx, c.done, normalized)
	return true
}

// Stop cancels the loop and waits for it to exit. Returns false when no
// loop was running.
func (c *ScanController) Stop() bool {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done

	c.statusMu.Lock()
	c.status.Active = false
	c.status.Folders = nil
	c.statusMu.Unlock()
	return true
}

// Status returns a snapshot of the controller state.
func (c *ScanController) Status() domain.ScanStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	status := c.status
	status.Folders = append([]string(nil), c.status.Folders...)
	return status
}

func (c *ScanController) run(ctx context.Context, done chan struct{}, explicit []string) {
	defer close(done)
	defer func() {
		c.statusMu.Lock()
		c.status.Active = false
		c.statusMu.Unlock()
	}()

	for {
		interval := c.settings.PollInterval(ctx)
		targets := c.scanner.ResolveTargets(ctx, explicit)
		started := time.Now().UTC()

		c.statusMu.Lock()
		c.status.PollInterval = interval
		c.status.Folders = targets
		c.status.LastStartedAt = &started
		c.statusMu.Unlock()

		count, err := c.scanner.ScanOnce(ctx, targets)
		finished := time.Now().UTC()

		c.statusMu.Lock()
		c.status.LastFinishedAt = &finished
		if err != nil && ctx.Err() == nil {
			c.status.LastError = err.Error()
		} else if err == nil {
			c.status.LastError = ""
			c.status.LastResultCount = &count
		}
		c.statusMu.Unlock()

		if err != nil && ctx.Err() == nil {
			c.log.WithError(err).Error("scan pass failed")
		}

		select {
		case <-ctx.Done():
			c.log.Debug("scan loop cancelled")
			return
		case <-time.After(interval):
		}
	}
}
