package bootstrap

import (
	"sorter_server/config"
	"sorter_server/pkg/logger"
)

// Worker runs the continuous mailbox scan loop without the HTTP surface.
type Worker struct {
	deps *Dependencies
	quit chan struct{}
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "sorter-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &Worker{deps: deps, quit: make(chan struct{})}, cleanup, nil
}

// Start launches the poll loop over the monitored folders and blocks until
// Stop is called.
func (w *Worker) Start() {
	if w.deps.ScanController.Start(nil) {
		logger.Info("Scan loop started")
	}
	<-w.quit
}

// Stop halts the loop and waits for the active pass to finish.
func (w *Worker) Stop() {
	if w.deps.ScanController.Stop() {
		logger.Info("Scan loop stopped")
	}
	close(w.quit)
}
