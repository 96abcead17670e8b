package udp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
)

const (
	maxPacketSize = 8192
	readDeadline  = 5 * time.Second
)

// Listener receives hub broadcasts on the local network. The hub sends JSON
// datagrams to port 50222 roughly once per second.
type Listener struct {
	addr      string
	discovery time.Duration
	logger    *slog.Logger

	conn     *net.UDPConn
	buf      []byte
	received bool
	started  time.Time
}

// NewListener creates a Listener for the given bind address. discovery is how
// long Receive waits for a first packet before concluding no station is
// broadcasting on this network.
func NewListener(addr string, discovery time.Duration, logger *slog.Logger) *Listener {
	return &Listener{
		addr:      addr,
		discovery: discovery,
		logger:    logger,
		buf:       make([]byte, maxPacketSize),
	}
}

// Open binds the UDP socket. A port conflict is reported as a connectivity
// error so the caller can surface "address in use" distinctly from transient
// network failures.
func (l *Listener) Open() error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", domain.ErrConnectivity, l.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: address_in_use: %s", domain.ErrConnectivity, l.addr)
		}
		return fmt.Errorf("%w: bind %s: %v", domain.ErrConnectivity, l.addr, err)
	}

	l.conn = conn
	l.started = time.Now()
	l.logger.Info("udp listener bound", "addr", conn.LocalAddr().String())
	return nil
}

// Receive blocks until a datagram arrives or the context is cancelled. If no
// packet has ever arrived within the discovery window, it returns
// ErrDeviceNotFound so the service can report a misconfigured network instead
// of waiting forever.
func (l *Listener) Receive(ctx context.Context) (domain.RawPacket, error) {
	if l.conn == nil {
		return domain.RawPacket{}, fmt.Errorf("%w: listener not open", domain.ErrConnectivity)
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.RawPacket{}, err
		}

		// Short deadlines keep the loop responsive to cancellation and to
		// the discovery window without a watcher goroutine.
		wait := readDeadline
		if !l.received && l.discovery > 0 {
			remaining := l.discovery - time.Since(l.started)
			if remaining <= 0 {
				return domain.RawPacket{}, fmt.Errorf("%w: no broadcasts on %s within %s",
					domain.ErrDeviceNotFound, l.addr, l.discovery)
			}
			if remaining < wait {
				wait = remaining
			}
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return domain.RawPacket{}, fmt.Errorf("%w: set deadline: %v", domain.ErrConnectivity, err)
		}

		n, _, err := l.conn.ReadFromUDP(l.buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if !l.received && l.discovery > 0 && time.Since(l.started) > l.discovery {
					return domain.RawPacket{}, fmt.Errorf("%w: no broadcasts on %s within %s",
						domain.ErrDeviceNotFound, l.addr, l.discovery)
				}
				continue
			}
			if ctx.Err() != nil {
				return domain.RawPacket{}, ctx.Err()
			}
			return domain.RawPacket{}, fmt.Errorf("%w: read: %v", domain.ErrConnectivity, err)
		}

		l.received = true
		payload := make([]byte, n)
		copy(payload, l.buf[:n])

		return domain.RawPacket{
			Source:     domain.SourceUDP,
			Payload:    payload,
			ReceivedAt: time.Now().UTC(),
		}, nil
	}
}

// Close releases the socket. Safe to call before Open.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// Addr returns the bound address, or the configured address before Open.
func (l *Listener) Addr() string {
	if l.conn != nil {
		return l.conn.LocalAddr().String()
	}
	return l.addr
}
