package scan

import (
	"context"
	"testing"
	"time"

	"sorter_server/config"
	"sorter_server/core/service/settings"
)

type memSettings struct {
	values map[string]string
}

func (m *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func testResolver() *settings.Resolver {
	cfg := &config.Config{
		IMAPInbox:    "INBOX",
		PollInterval: 10 * time.Millisecond,
	}
	return settings.NewResolver(cfg, &memSettings{})
}

func TestScanControllerSingleActiveLoop(t *testing.T) {
	runner := newStubRunner(2)
	c := NewScanController(runner, testResolver())

	if !c.Start(nil) {
		t.Fatal("first start should succeed")
	}
	if c.Start(nil) {
		t.Error("second start while active should return false")
	}
	<-runner.started
	if !c.Status().Active {
		t.Error("status should be active while looping")
	}

	close(runner.release)
	if !c.Stop() {
		t.Error("stop should report an active loop")
	}
	if c.Stop() {
		t.Error("second stop should return false")
	}
	if c.Status().Active {
		t.Error("status should be inactive after stop")
	}
}

func TestScanControllerRepeatsPasses(t *testing.T) {
	runner := newStubRunner(1)
	close(runner.release)
	c := NewScanController(runner, testResolver())

	if !c.Start([]string{"Archive"}) {
		t.Fatal("start failed")
	}
	// wait for at least two passes separated by the poll interval
	<-runner.started
	<-runner.started
	c.Stop()

	if runner.callCount() < 2 {
		t.Errorf("scanner ran %d times, want at least 2", runner.callCount())
	}
	status := c.Status()
	if status.LastResultCount == nil || *status.LastResultCount != 1 {
		t.Errorf("last result count = %v", status.LastResultCount)
	}
	if status.LastStartedAt == nil || status.LastFinishedAt == nil {
		t.Error("timestamps should be recorded")
	}
}

func TestScanControllerRestartAfterStop(t *testing.T) {
	runner := newStubRunner(0)
	close(runner.release)
	c := NewScanController(runner, testResolver())

	if !c.Start(nil) {
		t.Fatal("start failed")
	}
	<-runner.started
	c.Stop()
	if !c.Start(nil) {
		t.Error("controller should be restartable after stop")
	}
	<-runner.started
	c.Stop()
}
