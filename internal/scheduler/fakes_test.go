package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/probe"
)

// funcProber adapts a function to probe.Prober.
type funcProber func(ctx context.Context, host string, nodeType config.NodeType, timeout time.Duration) probe.Result

func (f funcProber) Probe(ctx context.Context, host string, nodeType config.NodeType, timeout time.Duration) probe.Result {
	return f(ctx, host, nodeType, timeout)
}

type probeSpan struct {
	host  string
	start time.Time
	end   time.Time
}

// sleepingProber reports every host healthy after delay and records
// when each probe ran and how many overlapped.
type sleepingProber struct {
	delay time.Duration

	mu     sync.Mutex
	spans  []probeSpan
	active int32
	max    int32
	calls  int32
}

func (p *sleepingProber) Probe(ctx context.Context, host string, _ config.NodeType, _ time.Duration) probe.Result {
	atomic.AddInt32(&p.calls, 1)
	current := atomic.AddInt32(&p.active, 1)
	for {
		seen := atomic.LoadInt32(&p.max)
		if current <= seen || atomic.CompareAndSwapInt32(&p.max, seen, current) {
			break
		}
	}
	start := time.Now()
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
	}
	end := time.Now()
	atomic.AddInt32(&p.active, -1)

	p.mu.Lock()
	p.spans = append(p.spans, probeSpan{host: host, start: start, end: end})
	p.mu.Unlock()

	if ctx.Err() != nil {
		return probe.Result{ResponseTime: end.Sub(start), Err: ctx.Err()}
	}
	return probe.Result{Healthy: true, ResponseTime: end.Sub(start), Port: 22}
}

func (p *sleepingProber) span(host string) (probeSpan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.spans {
		if s.host == host {
			return s, true
		}
	}
	return probeSpan{}, false
}

func (p *sleepingProber) callCount() int {
	return int(atomic.LoadInt32(&p.calls))
}

// blockingProber never answers until its context is cancelled.
type blockingProber struct {
	started chan struct{}
	once    sync.Once
}

func newBlockingProber() *blockingProber {
	return &blockingProber{started: make(chan struct{})}
}

func (p *blockingProber) Probe(ctx context.Context, _ string, _ config.NodeType, _ time.Duration) probe.Result {
	p.once.Do(func() { close(p.started) })
	<-ctx.Done()
	return probe.Result{ResponseTime: time.Millisecond, Err: ctx.Err()}
}

// staticSource serves a fixed snapshot that tests may swap.
type staticSource struct {
	mu    sync.Mutex
	snap  config.Snapshot
	err   error
	loads int
}

func newStaticSource(nodes []config.Node) *staticSource {
	settings := config.DefaultSettings()
	settings.NodeTimeout = 0.05
	settings.HealthCheckInterval = 0.02
	settings.MaxConcurrentChecks = 4
	return &staticSource{snap: config.Snapshot{Settings: settings, Nodes: nodes}}
}

func (s *staticSource) Snapshot() (config.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return config.Snapshot{}, s.err
	}
	return s.snap, nil
}

func (s *staticSource) set(nodes []config.Node, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Nodes = nodes
	s.err = err
}

func (s *staticSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type panicSource struct{}

func (panicSource) Snapshot() (config.Snapshot, error) {
	panic("settings exploded")
}

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	completed atomic.Int32
	failed    atomic.Int32
	rejected  atomic.Int32
}

func (o *recordingObserver) CycleCompleted(CycleStats) { o.completed.Add(1) }
func (o *recordingObserver) CycleFailed()              { o.failed.Add(1) }
func (o *recordingObserver) ForceCheckRejected()       { o.rejected.Add(1) }

func makeNodes(count int) []config.Node {
	nodes := make([]config.Node, count)
	for i := range nodes {
		nodes[i] = config.Node{
			Name: fmt.Sprintf("node-%d", i+1),
			IP:   fmt.Sprintf("192.0.2.%d", i+1),
			Type: config.NodeTypeSSH,
		}
	}
	return nodes
}
