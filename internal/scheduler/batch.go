package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/probe"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultJoinGrace  = time.Second
	defaultBatchPause = 100 * time.Millisecond
	maxErrorMessage   = 50

	excellentResponse = 100 * time.Millisecond
	goodResponse      = 500 * time.Millisecond
)

// CycleStats summarises one pass over the node list.
type CycleStats struct {
	Nodes     int
	Batches   int
	Healthy   int
	Unhealthy int
	Errored   int
	TimedOut  int
	Duration  time.Duration
}

// Batcher checks nodes in fixed-size batches. Nodes inside a batch are
// probed concurrently; batches run strictly one after another.
type Batcher struct {
	prober probe.Prober
	store  state.Store
	logger *log.Logger
	grace  time.Duration
	pause  time.Duration
	now    func() time.Time
}

// NewBatcher returns a batcher writing results into store.
func NewBatcher(prober probe.Prober, store state.Store, logger *log.Logger) *Batcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Batcher{
		prober: prober,
		store:  store,
		logger: logger,
		grace:  defaultJoinGrace,
		pause:  defaultBatchPause,
		now:    time.Now,
	}
}

// SetBatchPause changes the delay inserted between batches.
func (b *Batcher) SetBatchPause(pause time.Duration) {
	b.pause = pause
}

// SetJoinGrace changes how long past the probe timeout a batch may run
// before its remaining probes are cancelled.
func (b *Batcher) SetJoinGrace(grace time.Duration) {
	b.grace = grace
}

// Partition splits nodes into consecutive batches of size. The last batch
// may be smaller. A size below one is treated as one.
func Partition(nodes []config.Node, size int) [][]config.Node {
	if len(nodes) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	batches := make([][]config.Node, 0, (len(nodes)+size-1)/size)
	for start := 0; start < len(nodes); start += size {
		end := start + size
		if end > len(nodes) {
			end = len(nodes)
		}
		batches = append(batches, nodes[start:end])
	}
	return batches
}

// RunChecks probes every node and writes one HealthRecord per node.
// Each batch is given timeout plus the join grace; probes still running
// after that are cancelled and recorded as timed out. If ctx is cancelled
// the remaining batches are skipped and in-flight results are discarded.
func (b *Batcher) RunChecks(ctx context.Context, nodes []config.Node, maxConcurrent int, timeout time.Duration) CycleStats {
	start := time.Now()
	stats := CycleStats{Nodes: len(nodes)}
	tally := &cycleTally{}

	for i, batch := range Partition(nodes, maxConcurrent) {
		if i > 0 && !b.sleep(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		b.runBatch(ctx, i, batch, timeout, tally)
		stats.Batches++
	}

	tally.fill(&stats)
	stats.Duration = time.Since(start)
	return stats
}

func (b *Batcher) runBatch(ctx context.Context, index int, batch []config.Node, timeout time.Duration, tally *cycleTally) {
	joinCtx, cancel := context.WithTimeout(ctx, timeout+b.grace)
	defer cancel()

	g, gctx := errgroup.WithContext(joinCtx)
	for _, node := range batch {
		g.Go(func() error {
			b.checkNode(ctx, gctx, node, timeout, tally)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil && errors.Is(joinCtx.Err(), context.DeadlineExceeded) {
		b.logger.Warn(log.CategoryNetwork, "batch join timeout",
			zap.Int("batch", index+1),
			zap.Int("size", len(batch)),
			zap.Duration("limit", timeout+b.grace))
	}
}

func (b *Batcher) checkNode(cycleCtx, ctx context.Context, node config.Node, timeout time.Duration, tally *cycleTally) {
	defer func() {
		if r := recover(); r != nil {
			if cycleCtx.Err() != nil {
				return
			}
			record := errorRecord(node, fmt.Errorf("check panicked: %v", r), b.now())
			b.store.Write(node.Name, record)
			tally.add(record.Status, false)
			b.logger.Error(log.CategoryError, "node check panicked",
				zap.String("node", node.Name),
				zap.Any("panic", r))
		}
	}()

	result := b.prober.Probe(ctx, node.IP, node.Type, timeout)
	if cycleCtx.Err() != nil {
		return
	}

	timedOut := !result.Healthy && ctx.Err() != nil
	record := buildRecord(node, result, timedOut, b.now())
	b.store.Write(node.Name, record)
	tally.add(record.Status, timedOut)
	b.logger.LogCheckResult(node.Name, string(record.Status), result.ResponseTime, result.Err)
}

func (b *Batcher) sleep(ctx context.Context) bool {
	if b.pause <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(b.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func buildRecord(node config.Node, result probe.Result, timedOut bool, now time.Time) state.HealthRecord {
	if !result.Healthy && probe.Unexpected(result.Err) {
		record := errorRecord(node, result.Err, now)
		record.ResponseTimeMs = result.ResponseTime.Milliseconds()
		return record
	}

	record := state.HealthRecord{
		IP:             node.IP,
		Type:           node.Type,
		ResponseTimeMs: result.ResponseTime.Milliseconds(),
		LastCheck:      now,
	}
	switch {
	case result.Healthy:
		record.Status = state.StatusHealthy
		record.Recommendation = healthyRecommendation(result.ResponseTime)
	case timedOut:
		record.Status = state.StatusUnhealthy
		record.Recommendation = "Check timed out - node may be overloaded or filtered"
	default:
		record.Status = state.StatusUnhealthy
		record.Recommendation = "Node unreachable - check power and network link"
	}
	return record
}

func errorRecord(node config.Node, err error, now time.Time) state.HealthRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return state.HealthRecord{
		IP:             node.IP,
		Type:           node.Type,
		Status:         state.StatusError,
		LastCheck:      now,
		Recommendation: "Error: " + truncate(msg, maxErrorMessage),
	}
}

func healthyRecommendation(rt time.Duration) string {
	switch {
	case rt < excellentResponse:
		return "Connection excellent"
	case rt < goodResponse:
		return "Connection good"
	default:
		return "Slow response - check network latency"
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

type cycleTally struct {
	mu        sync.Mutex
	healthy   int
	unhealthy int
	errored   int
	timedOut  int
}

func (t *cycleTally) add(status state.Status, timedOut bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch status {
	case state.StatusHealthy:
		t.healthy++
	case state.StatusUnhealthy:
		t.unhealthy++
	default:
		t.errored++
	}
	if timedOut {
		t.timedOut++
	}
}

func (t *cycleTally) fill(stats *CycleStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats.Healthy = t.healthy
	stats.Unhealthy = t.unhealthy
	stats.Errored = t.errored
	stats.TimedOut = t.timedOut
}
