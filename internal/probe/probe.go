package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
)

// Result is the outcome of probing one node.
type Result struct {
	Healthy      bool
	ResponseTime time.Duration
	// Port is the port that accepted the connection, zero on failure.
	Port int
	// Err is the error from the last port attempted, nil on success.
	Err error
}

// Prober checks reachability of a node.
type Prober interface {
	Probe(ctx context.Context, host string, nodeType config.NodeType, timeout time.Duration) Result
}

// DialFunc opens a connection; it matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPProber reports a node healthy when a bare TCP connect succeeds on one
// of its candidate ports. No protocol handshake is attempted, so a healthy
// result says nothing about whether a login would work.
type TCPProber struct {
	dial DialFunc
}

// NewTCPProber returns a prober using a plain net.Dialer.
func NewTCPProber() *TCPProber {
	var d net.Dialer
	return &TCPProber{dial: d.DialContext}
}

// NewTCPProberWithDialer returns a prober using dial for every attempt.
func NewTCPProberWithDialer(dial DialFunc) *TCPProber {
	return &TCPProber{dial: dial}
}

// CandidatePorts returns the ports tried for a node type, in order.
func CandidatePorts(nodeType config.NodeType) []int {
	switch nodeType {
	case config.NodeTypeSSH:
		return []int{22}
	case config.NodeTypeTelnet:
		return []int{23}
	default:
		return []int{22, 23}
	}
}

// Probe tries each candidate port in order with its own timeout and stops
// at the first successful connect. Cancelling ctx aborts the attempt in
// progress and skips the remaining ports.
func (p *TCPProber) Probe(ctx context.Context, host string, nodeType config.NodeType, timeout time.Duration) Result {
	return p.probePorts(ctx, host, CandidatePorts(nodeType), timeout)
}

func (p *TCPProber) probePorts(ctx context.Context, host string, ports []int, timeout time.Duration) Result {
	start := time.Now()
	var lastErr error
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if err := p.connect(ctx, host, port, timeout); err != nil {
			lastErr = err
			continue
		}
		return Result{Healthy: true, ResponseTime: elapsed(start), Port: port}
	}
	return Result{Healthy: false, ResponseTime: elapsed(start), Err: lastErr}
}

func (p *TCPProber) connect(ctx context.Context, host string, port int, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func elapsed(start time.Time) time.Duration {
	d := time.Since(start)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
