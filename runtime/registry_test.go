package runtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mystiko/errors"
	"mystiko/protocol"
)

// recorderSink captures delivered frames for assertions. Setting full
// simulates a session whose outbound buffer cannot accept more frames.
type recorderSink struct {
	mu     sync.Mutex
	frames []protocol.ServerFrame
	full   bool
}

func (s *recorderSink) Deliver(frame protocol.ServerFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *recorderSink) Frames() []protocol.ServerFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.ServerFrame{}, s.frames...)
}

func (s *recorderSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

func Test_Registry_Connect_Rejects_Duplicate(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.NoError(registry.Connect("Alice", &recorderSink{}))
	req.ErrorIs(registry.Connect("ALICE", &recorderSink{}), errors.ErrAlreadyLoggedIn)

	// After a disconnect the name is free again.
	registry.Disconnect("alice")
	req.NoError(registry.Connect("alice", &recorderSink{}))
}

func Test_Registry_Join_Leaves_Previous_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	req.NoError(registry.Connect("Alice", &recorderSink{}))
	req.NoError(registry.Connect("Bob", &recorderSink{}))

	previous, members := registry.Join("Alice", "General")
	req.Empty(previous)
	req.Equal([]string{"Alice"}, members)

	_, members = registry.Join("Bob", "General")
	req.Equal([]string{"Alice", "Bob"}, members)

	// Joining a second room implicitly leaves the first.
	previous, members = registry.Join("Alice", "Tech")
	req.Equal("General", previous)
	req.Equal([]string{"Alice"}, members)
	req.Equal([]string{"Bob"}, registry.MembersOf("General"))

	room, ok := registry.RoomOf("alice")
	req.True(ok)
	req.Equal("Tech", room)
}

func Test_Registry_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	req.NoError(registry.Connect("Alice", &recorderSink{}))

	req.Empty(registry.Leave("Alice"))

	registry.Join("Alice", "General")
	req.Equal("General", registry.Leave("Alice"))

	_, ok := registry.RoomOf("Alice")
	req.False(ok)
	req.Empty(registry.MembersOf("General"))
}

func Test_Registry_EvictRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	for _, username := range []string{"Alice", "Bob", "Charlie"} {
		req.NoError(registry.Connect(username, &recorderSink{}))
	}
	registry.Join("Alice", "General")
	registry.Join("Bob", "General")
	registry.Join("Charlie", "Tech")

	evicted := registry.EvictRoom("general")
	req.Equal([]string{"Alice", "Bob"}, evicted)

	// Evicted members are still online, just roomless.
	_, ok := registry.RoomOf("Alice")
	req.False(ok)
	_, _, online := registry.SinkFor("Alice")
	req.True(online)
	req.Equal([]string{"Charlie"}, registry.MembersOf("Tech"))
}

func Test_Registry_SinkFor(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := &recorderSink{}
	req.NoError(registry.Connect("Alice", sink))

	resolved, display, ok := registry.SinkFor("ALICE")
	req.True(ok)
	req.Equal("Alice", display)
	req.Same(sink, resolved)

	_, _, ok = registry.SinkFor("bob")
	req.False(ok)
}

func Test_Registry_SinksForRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	for _, username := range []string{"Alice", "Bob"} {
		req.NoError(registry.Connect(username, &recorderSink{}))
		registry.Join(username, "General")
	}

	req.Len(registry.SinksForRoom("General"), 2)
	req.Empty(registry.SinksForRoom("Tech"))
}

func Test_Registry_Concurrent_Joins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const sessions = 50
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		username := fmt.Sprintf("user%02d", i)
		req.NoError(registry.Connect(username, &recorderSink{}))
		wg.Add(1)
		go func(username string, i int) {
			defer wg.Done()
			registry.Join(username, "General")
			if i%2 == 0 {
				registry.Join(username, "Tech")
			}
		}(username, i)
	}
	wg.Wait()

	// Every session ended up in exactly one room.
	req.Len(registry.MembersOf("General"), sessions/2)
	req.Len(registry.MembersOf("Tech"), sessions/2)
	for i := 0; i < sessions; i++ {
		_, ok := registry.RoomOf(fmt.Sprintf("user%02d", i))
		req.True(ok)
	}
}
