// Package vpn provides VPN connection supervision functionality.
// This file contains the control channel client which talks to the
// management interface a spawned VPN client exposes on loopback TCP.
package vpn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// Status line prefixes reported by the management interface.
const (
	statusPrefixBytesIn   = "TCP/UDP read bytes"
	statusPrefixBytesOut  = "TCP/UDP write bytes"
	statusPrefixConnected = "Connected since"
	statusTerminator      = "END"
)

// ControlChannelClient queries a VPN client's management interface.
// The client exposes a line-oriented protocol: commands are terminated
// by a newline, responses end with an END line. One goroutine at a
// time may issue queries; Close is safe to call concurrently and is
// idempotent.
type ControlChannelClient struct {
	host        string
	port        int
	dialTimeout time.Duration
	cmdTimeout  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

// NewControlChannelClient creates a client for the management endpoint.
// It does not connect; call Dial before issuing queries.
func NewControlChannelClient(host string, port int, dialTimeout time.Duration) *ControlChannelClient {
	return &ControlChannelClient{
		host:        host,
		port:        port,
		dialTimeout: dialTimeout,
		cmdTimeout:  common.ManagementTimeout,
	}
}

// Dial connects to the management interface and discards the banner
// line it prints on connect.
func (c *ControlChannelClient) Dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &common.ControlChannelError{Op: "dial", Err: err}
	}

	reader := bufio.NewReader(conn)

	// The management interface greets every connection with a banner.
	conn.SetReadDeadline(time.Now().Add(c.cmdTimeout))
	if _, err := reader.ReadString('\n'); err != nil {
		conn.Close()
		return &common.ControlChannelError{Op: "banner", Err: err}
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.reader = reader
	c.closed = false
	c.mu.Unlock()

	common.LogDebug("Control channel connected to %s", addr)
	return nil
}

// QueryStats issues a status command and parses the response into
// connection statistics. Lines the parser does not recognize are
// ignored. A malformed numeric field is skipped and logged; it never
// fails the whole query.
func (c *ControlChannelClient) QueryStats() (common.ConnectionStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats common.ConnectionStats

	if c.conn == nil || c.closed {
		return stats, &common.ControlChannelError{Op: "status", Err: common.ErrNotConnected}
	}

	c.conn.SetDeadline(time.Now().Add(c.cmdTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write([]byte("status\n")); err != nil {
		return stats, &common.ControlChannelError{Op: "status", Err: err}
	}

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			// EOF or timeout before the terminator: the response is
			// incomplete and the stats cannot be trusted.
			return common.ConnectionStats{}, &common.ControlChannelError{Op: "status", Err: err}
		}

		line = strings.TrimRight(line, "\r\n")
		if line == statusTerminator {
			break
		}

		parseStatusLine(line, &stats)
	}

	return stats, nil
}

// SendSignal asks the client to deliver a signal to itself. This is
// how a connection owned by another process is stopped: the management
// interface relays the signal and the client tears the tunnel down.
func (c *ControlChannelClient) SendSignal(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed {
		return &common.ControlChannelError{Op: "signal", Err: common.ErrNotConnected}
	}

	c.conn.SetDeadline(time.Now().Add(c.cmdTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write([]byte("signal " + name + "\n")); err != nil {
		return &common.ControlChannelError{Op: "signal", Err: err}
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return &common.ControlChannelError{Op: "signal", Err: err}
	}
	if !strings.HasPrefix(line, "SUCCESS") {
		err := fmt.Errorf("rejected: %s", strings.TrimRight(line, "\r\n"))
		return &common.ControlChannelError{Op: "signal", Err: err}
	}
	return nil
}

// Close shuts the channel down. Safe to call more than once; later
// calls are no-ops.
func (c *ControlChannelClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		c.closed = true
		return nil
	}

	c.closed = true
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// parseStatusLine folds one status line into stats. The value is the
// field after the last comma.
func parseStatusLine(line string, stats *common.ConnectionStats) {
	switch {
	case strings.HasPrefix(line, statusPrefixBytesIn):
		if v, ok := lastNumericField(line); ok {
			stats.BytesReceived = v
		}
	case strings.HasPrefix(line, statusPrefixBytesOut):
		if v, ok := lastNumericField(line); ok {
			stats.BytesSent = v
		}
	case strings.HasPrefix(line, statusPrefixConnected):
		if v, ok := lastNumericField(line); ok {
			stats.ConnectedSince = time.Unix(v, 0)
		}
	}
}

// lastNumericField parses the value after the last comma as an
// integer. Malformed values are reported at warn level and skipped.
func lastNumericField(line string) (int64, bool) {
	idx := strings.LastIndex(line, ",")
	if idx < 0 || idx+1 >= len(line) {
		common.LogWarn("Control channel: no value field in %q", line)
		return 0, false
	}

	v, err := strconv.ParseInt(strings.TrimSpace(line[idx+1:]), 10, 64)
	if err != nil {
		common.LogWarn("Control channel: bad numeric field in %q: %v", line, err)
		return 0, false
	}
	return v, true
}
