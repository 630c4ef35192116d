// Package server owns the transport: accepting TCP connections and
// running one session per client from accept to disconnect.
package server

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"mystiko/command"
	"mystiko/protocol"
	"mystiko/runtime"
)

// Options carries the injected per-connection limits.
type Options struct {
	MaxFrameSize   int
	ReadBufferSize int
	OutboundBuffer int
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Session is the server-side state of one connected client. It owns its
// connection exclusively: a read loop feeds bytes through the codec to
// the dispatcher, and a single write pump serializes every outbound
// frame, whether it is a direct reply or a broadcast, so concurrent
// writers can never interleave partial frames.
type Session struct {
	conn       net.Conn
	log        *slog.Logger
	dispatcher *runtime.Dispatcher
	decoder    *protocol.Decoder
	client     *runtime.Client
	opts       Options

	outbound  chan protocol.ServerFrame
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn net.Conn, log *slog.Logger, dispatcher *runtime.Dispatcher, opts Options) *Session {
	s := &Session{
		conn:       conn,
		log:        log,
		dispatcher: dispatcher,
		decoder:    protocol.NewDecoder(opts.MaxFrameSize),
		opts:       opts,
		outbound:   make(chan protocol.ServerFrame, opts.OutboundBuffer),
		done:       make(chan struct{}),
	}
	s.client = runtime.NewClient(s)
	return s
}

// Deliver queues a frame on the session's write path without blocking.
// It reports false when the session is closing or its buffer is full;
// the dispatcher treats a false return as a dropped frame.
func (s *Session) Deliver(frame protocol.ServerFrame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

// Run drives the session until the peer disconnects, the idle timeout
// fires, a protocol error occurs, or the server shuts down. Cleanup runs
// exactly once regardless of which path terminates the session.
func (s *Session) Run() {
	defer s.teardown()
	go s.writePump()

	remote := s.conn.RemoteAddr().String()
	s.log.Info("New connection", "remote", remote)

	buf := make([]byte, s.opts.ReadBufferSize)
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout)); err != nil {
			return
		}
		n, err := s.conn.Read(buf)
		if err != nil {
			s.log.Debug("Read loop finished", "remote", remote, "reason", err)
			return
		}

		s.decoder.Feed(buf[:n])
		for {
			frame, err := s.decoder.Next()
			if err != nil {
				// Framing errors are fatal for this connection only.
				s.log.Warn("Protocol error, closing connection", "remote", remote, "error", err)
				s.Deliver(protocol.ErrorFrame("Protocol error, closing connection"))
				return
			}
			if frame == nil {
				break
			}
			if closed := s.dispatcher.Handle(s.client, command.Parse(frame)); closed {
				return
			}
		}
	}
}

// Shutdown terminates the session from outside its read loop, used when
// the whole server stops. It only releases the socket; registry cleanup
// happens in the read goroutine once it observes the closed connection,
// so it can never race an action that is still executing.
func (s *Session) Shutdown() {
	s.close()
}

// writePump is the only goroutine writing to the connection. It drains
// queued frames until the session closes.
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			data, err := protocol.Encode(frame)
			if err != nil {
				s.log.Error("Frame encoding failed", "error", err)
				continue
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
				s.close()
				return
			}
			if _, err := s.conn.Write(data); err != nil {
				s.log.Debug("Write failed, closing session", "error", err)
				s.close()
				return
			}
		}
	}
}

// teardown runs when the read loop exits. The read goroutine is the only
// action executor, so by the time it runs no login can still be in flight
// and the authenticated identity is final: cleanup here can never leave a
// dangling registry entry behind, whichever path terminated the session.
func (s *Session) teardown() {
	s.dispatcher.HandleDisconnect(s.client)
	s.close()
}

// close releases the connection exactly once. A short grace period lets
// the write pump flush already-queued frames (goodbye, error notices)
// before the socket closes.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		time.AfterFunc(200*time.Millisecond, func() {
			close(s.done)
			_ = s.conn.Close()
		})
	})
}
