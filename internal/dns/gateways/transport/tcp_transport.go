package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/hawknest/rrdns/internal/dns/common/log"
	"github.com/hawknest/rrdns/internal/dns/gateways/wire"
	"github.com/hawknest/rrdns/internal/dns/services/resolver"
)

// maxTCPMessageSize is the RFC 1035 §4.2.2 limit on a single DNS-over-TCP
// message (the 2-byte length prefix can address more, but no sender should
// produce a larger message).
const maxTCPMessageSize = 65535

// TCPTransport implements ServerTransport for DNS over TCP (RFC 1035 §4.2.2).
// Every message on the wire is prefixed with a 2-byte big-endian length; the
// codec itself never sees the prefix, only the bare query/response bytes it
// already knows how to decode/encode for UDP. The recursive resolver's
// retry-on-truncation path (services/resolver) dials out over this same
// framing via gateways/upstream, so TCPTransport is both the inbound listener
// and, in spirit, the shape the outbound retry connects back to.
type TCPTransport struct {
	addr     string
	listener net.Listener
	codec    wire.DNSCodec
	logger   log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTCPTransport creates a new TCP transport instance.
func NewTCPTransport(addr string, codec wire.DNSCodec, logger log.Logger) *TCPTransport {
	return &TCPTransport{
		addr:   addr,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins listening for TCP DNS connections on the configured address.
func (t *TCPTransport) Start(ctx context.Context, handler resolver.DNSResponder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("TCP transport already running")
	}

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind TCP socket on %s: %w", t.addr, err)
	}

	t.listener = ln
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "tcp",
		"address":   t.addr,
	}, "DNS transport started")

	go t.acceptLoop(ctx, handler)

	return nil
}

// Stop gracefully shuts down the TCP transport, closing the listener and
// waiting for in-flight connections to finish their current message.
func (t *TCPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}

	close(t.stopCh)

	var closeErr error
	if t.listener != nil {
		closeErr = t.listener.Close()
		if closeErr != nil {
			t.logger.Warn(map[string]any{
				"error": closeErr.Error(),
			}, "Error closing TCP listener")
		}
	}
	t.running = false
	t.mu.Unlock()

	t.wg.Wait()

	t.logger.Info(map[string]any{
		"transport": "tcp",
		"address":   t.addr,
	}, "DNS transport stopped")

	return closeErr
}

// Address returns the network address the transport is bound to.
func (t *TCPTransport) Address() string {
	return t.addr
}

// acceptLoop continuously accepts TCP connections and hands each to its own
// handling goroutine.
func (t *TCPTransport) acceptLoop(ctx context.Context, handler resolver.DNSResponder) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.stopCh:
				return // normal shutdown
			default:
			}

			t.mu.RLock()
			running := t.running
			t.mu.RUnlock()
			if !running {
				return
			}

			t.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "Failed to accept TCP connection")
			continue
		}

		t.wg.Add(1)
		go t.handleConn(ctx, conn, handler)
	}
}

// handleConn serves every length-prefixed query on a single TCP connection
// until the client closes it, the server shuts down, or a framing error
// occurs.
func (t *TCPTransport) handleConn(ctx context.Context, conn net.Conn, handler resolver.DNSResponder) {
	defer t.wg.Done()
	defer conn.Close()

	clientAddr := conn.RemoteAddr()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		data, err := readTCPMessage(conn)
		if err != nil {
			if err != io.EOF {
				t.logger.Debug(map[string]any{
					"client": clientAddr.String(),
					"error":  err.Error(),
				}, "Closing TCP connection")
			}
			return
		}

		query, err := t.codec.DecodeQuery(data)
		if err != nil {
			t.logger.Warn(map[string]any{
				"client": clientAddr.String(),
				"error":  err.Error(),
				"size":   len(data),
			}, "Failed to decode DNS query")
			return
		}

		t.logger.Debug(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.ID,
			"name":     query.Name,
			"type":     query.Type,
		}, "Received DNS query")

		response := handler.HandleRequest(ctx, query, clientAddr)

		responseData, err := t.codec.EncodeResponse(response)
		if err != nil {
			t.logger.Error(map[string]any{
				"client":   clientAddr.String(),
				"query_id": query.ID,
				"error":    err.Error(),
			}, "Failed to encode DNS response")
			return
		}

		if err := writeTCPMessage(conn, responseData); err != nil {
			t.logger.Error(map[string]any{
				"client":   clientAddr.String(),
				"query_id": response.ID,
				"error":    err.Error(),
			}, "Failed to send DNS response")
			return
		}

		t.logger.Debug(map[string]any{
			"client":   clientAddr.String(),
			"query_id": response.ID,
			"rcode":    response.RCode,
			"answers":  len(response.Answers),
			"size":     len(responseData),
		}, "Sent DNS response")
	}
}

// readTCPMessage reads one 2-byte-length-prefixed DNS message per RFC 1035
// §4.2.2.
func readTCPMessage(conn net.Conn) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}

	msgLen := binary.BigEndian.Uint16(lenBuf[:])
	if msgLen == 0 {
		return nil, fmt.Errorf("zero-length TCP DNS message")
	}

	buf := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeTCPMessage writes data with its 2-byte length prefix. data larger
// than maxTCPMessageSize cannot be framed and is rejected rather than
// silently truncated.
func writeTCPMessage(conn net.Conn, data []byte) error {
	if len(data) > maxTCPMessageSize {
		return fmt.Errorf("DNS message too large for TCP framing: %d bytes", len(data))
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(data)))

	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}
