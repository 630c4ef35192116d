package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"mystiko/runtime"
)

// Acceptor binds the listening endpoint and spawns a session per
// connection. It never blocks on any single session; a slow or hostile
// client only ever affects its own goroutines.
type Acceptor struct {
	log        *slog.Logger
	address    string
	dispatcher *runtime.Dispatcher
	opts       Options

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewAcceptor(log *slog.Logger, address string, dispatcher *runtime.Dispatcher, opts Options) *Acceptor {
	return &Acceptor{
		log:        log,
		address:    address,
		dispatcher: dispatcher,
		opts:       opts,
		sessions:   make(map[*Session]struct{}),
	}
}

// Run accepts connections until the context is canceled. It implements
// contract.Worker so the supervisor restarts it if the accept loop ever
// fails unexpectedly.
func (a *Acceptor) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.address, err)
	}

	// Closing the listener is what unblocks Accept on shutdown.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	a.log.Info("Listening", "address", a.address)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				a.shutdownSessions()
				return nil
			}
			a.log.Error("Accept error", "error", err)
			continue
		}

		session := NewSession(conn, a.log, a.dispatcher, a.opts)
		a.track(session)
		go func() {
			session.Run()
			a.untrack(session)
		}()
	}
}

func (a *Acceptor) track(session *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[session] = struct{}{}
}

func (a *Acceptor) untrack(session *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, session)
}

// shutdownSessions closes every live session so their registry entries
// are cleaned up before the process exits.
func (a *Acceptor) shutdownSessions() {
	a.mu.Lock()
	live := make([]*Session, 0, len(a.sessions))
	for session := range a.sessions {
		live = append(live, session)
	}
	a.mu.Unlock()

	for _, session := range live {
		session.Shutdown()
	}
}
