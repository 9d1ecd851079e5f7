package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/metrics"
	"github.com/doridoridoriand/nodeboard/internal/probe"
	"github.com/doridoridoriand/nodeboard/internal/scheduler"
	"github.com/doridoridoriand/nodeboard/internal/state"
)

// MockProber is a probe.Prober whose results are set per host.
type MockProber struct {
	mu          sync.Mutex
	probeCount  sync.Map // map[string]*int64
	healthy     bool
	rtt         time.Duration
	probeResult map[string]probe.Result
}

// NewMockProber creates a MockProber that reports every host healthy.
func NewMockProber() *MockProber {
	return &MockProber{
		healthy:     true,
		rtt:         10 * time.Millisecond,
		probeResult: make(map[string]probe.Result),
	}
}

// SetResult sets the result for a specific host.
func (m *MockProber) SetResult(host string, result probe.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeResult[host] = result
}

// Probe implements probe.Prober.
func (m *MockProber) Probe(ctx context.Context, host string, nodeType config.NodeType, timeout time.Duration) probe.Result {
	val, _ := m.probeCount.LoadOrStore(host, new(int64))
	atomic.AddInt64(val.(*int64), 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if result, ok := m.probeResult[host]; ok {
		return result
	}
	return probe.Result{Healthy: m.healthy, ResponseTime: m.rtt, Port: probe.CandidatePorts(nodeType)[0]}
}

// GetProbeCount returns the number of probes for a host.
func (m *MockProber) GetProbeCount(host string) int64 {
	val, ok := m.probeCount.Load(host)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(val.(*int64))
}

// WaitForProbes waits until host has been probed at least count times.
func (m *MockProber) WaitForProbes(t *testing.T, host string, count int64, timeout time.Duration) {
	t.Helper()
	waitForCondition(t, func() bool {
		return m.GetProbeCount(host) >= count
	}, timeout, "probes to "+host)
}

// writeFile writes content to name inside dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// waitForCondition waits until the condition function returns true or timeout.
func waitForCondition(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for condition: %s", msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

const e2eSettings = `{
  "node_timeout": 0.05,
  "max_concurrent_checks": 2,
  "health_check_interval": 0.1,
  "refresh_interval": 0.1,
  "log_file": ""
}`

func newE2EMonitor(t *testing.T, dir string, prober probe.Prober) (*scheduler.Monitor, *state.StoreImpl) {
	t.Helper()
	settingsPath := writeFile(t, dir, "settings.json", e2eSettings)
	loader := config.NewLoader(settingsPath, filepath.Join(dir, "nodes.json"), config.CLIOverrides{})

	store := state.NewStore()
	batcher := scheduler.NewBatcher(prober, store, log.Nop())
	batcher.SetBatchPause(0)
	monitor := scheduler.NewMonitor(loader, batcher, store, log.Nop(), scheduler.Options{InitialDelay: time.Millisecond})
	return monitor, store
}

func TestE2E_ConfigToMonitoring(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nodes.json", `{"nodes": [
  {"name": "node1", "ip": "192.0.2.1", "type": "ssh"},
  {"name": "node2", "ip": "192.0.2.2", "type": "TELNET"},
  {"name": "node3", "ip": "192.0.2.3", "type": "switch"}
]}`)

	prober := NewMockProber()
	prober.SetResult("192.0.2.3", probe.Result{ResponseTime: 50 * time.Millisecond})
	monitor, store := newE2EMonitor(t, dir, prober)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	prober.WaitForProbes(t, "192.0.2.1", 2, 2*time.Second)
	waitForCondition(t, func() bool { return store.Len() == 3 }, 2*time.Second, "three records")

	data := monitor.HealthData()
	if data["node1"].Status != state.StatusHealthy || data["node1"].Type != config.NodeTypeSSH {
		t.Errorf("node1: unexpected record %+v", data["node1"])
	}
	if data["node2"].Type != config.NodeTypeTelnet {
		t.Errorf("node2: expected telnet type, got %s", data["node2"].Type)
	}
	if data["node3"].Status != state.StatusUnhealthy || data["node3"].Type != config.NodeTypeUnknown {
		t.Errorf("node3: unexpected record %+v", data["node3"])
	}
	if data["node3"].ResponseTimeMs <= 0 {
		t.Errorf("node3: expected positive response time, got %d", data["node3"].ResponseTimeMs)
	}

	monitor.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestE2E_NodesFileEditTriggersCheck(t *testing.T) {
	dir := t.TempDir()
	nodesPath := writeFile(t, dir, "nodes.json", `{"nodes": [{"name": "node1", "ip": "192.0.2.1", "type": "ssh"}]}`)

	prober := NewMockProber()
	monitor, store := newE2EMonitor(t, dir, prober)
	if !monitor.RunCycle(context.Background()) {
		t.Fatal("expected the first cycle to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- config.Watch(ctx, nodesPath, 20*time.Millisecond, func() { monitor.ForceCheck() }, nil)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := config.AddNode(nodesPath, config.Node{Name: "node4", IP: "192.0.2.4", Type: config.NodeTypeSSH}); err != nil {
		t.Fatalf("failed to add node: %v", err)
	}
	prober.WaitForProbes(t, "192.0.2.4", 1, 3*time.Second)
	waitForCondition(t, func() bool {
		_, ok := store.Get("node4")
		return ok
	}, 2*time.Second, "node4 record")

	// Removed nodes keep their last record.
	if err := config.RemoveNode(nodesPath, "node1"); err != nil {
		t.Fatalf("failed to remove node: %v", err)
	}
	waitForCondition(t, func() bool { return !monitor.CheckInProgress() }, 2*time.Second, "idle monitor")
	monitor.RunCycle(context.Background())
	if _, ok := store.Get("node1"); !ok {
		t.Error("node1 record should remain after removal")
	}

	cancel()
	select {
	case <-watchErr:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	waitForCondition(t, func() bool { return !monitor.CheckInProgress() }, 2*time.Second, "idle monitor")
}

func TestE2E_MetricsEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nodes.json", `{"nodes": [
  {"name": "node1", "ip": "192.0.2.1", "type": "ssh"},
  {"name": "node2", "ip": "192.0.2.2", "type": "ssh"}
]}`)

	prober := NewMockProber()
	prober.SetResult("192.0.2.2", probe.Result{ResponseTime: time.Millisecond})
	settingsPath := writeFile(t, dir, "settings.json", e2eSettings)
	loader := config.NewLoader(settingsPath, "", config.CLIOverrides{})

	store := state.NewStore()
	registry := metrics.NewRegistry(store, nil)
	monitor := scheduler.NewMonitor(loader, scheduler.NewBatcher(prober, store, log.Nop()), store, log.Nop(),
		scheduler.Options{Observer: metrics.NewCycleMetrics(registry)})
	monitor.RunCycle(context.Background())

	server := httptest.NewServer(metrics.Handler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		`nodeboard_node_up{ip="192.0.2.1",node="node1",type="ssh"} 1`,
		`nodeboard_node_up{ip="192.0.2.2",node="node2",type="ssh"} 0`,
		`nodeboard_nodes{status="Unhealthy"} 1`,
		`nodeboard_check_cycles_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
