package server

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"mystiko/auth"
	"mystiko/domain"
	"mystiko/moderation"
	"mystiko/protocol"
	"mystiko/repositories"
	"mystiko/runtime"
	"mystiko/services"
)

func newTestDispatcher(t *testing.T) *runtime.Dispatcher {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	moderator, err := moderation.NewModerator([]string{"dumbass"}, '*')
	require.NoError(t, err)

	return runtime.NewDispatcher(
		logs.GetLoggerFromLevel(slog.LevelDebug),
		runtime.NewRegistry(),
		services.NewAuthService(
			repositories.NewAccountRepository(db),
			auth.NewTokenIssuer("test_secret", time.Hour),
		),
		repositories.NewRoomRepository(db, 5),
		repositories.NewMessageRepository(db),
		moderator,
		domain.Limits{
			MinRoomNameLength: 3,
			MaxRoomNameLength: 30,
			MaxRoomsPerUser:   5,
			MaxMessageLength:  1000,
			HistoryLimit:      50,
			MaxDescription:    100,
		},
	)
}

// startSession wires a session to one end of an in-memory pipe and returns
// the peer end plus a buffered reader over it.
func startSession(t *testing.T, dispatcher *runtime.Dispatcher) (net.Conn, *bufio.Reader, *Session) {
	t.Helper()
	peer, conn := net.Pipe()
	session := NewSession(conn, logs.GetLoggerFromLevel(slog.LevelDebug), dispatcher, Options{
		MaxFrameSize:   65536,
		ReadBufferSize: 4096,
		OutboundBuffer: 64,
		IdleTimeout:    5 * time.Second,
		WriteTimeout:   time.Second,
	})
	go session.Run()
	t.Cleanup(func() {
		session.Shutdown()
		_ = peer.Close()
	})
	return peer, bufio.NewReader(peer), session
}

func send(t *testing.T, conn net.Conn, frame protocol.ClientFrame) {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Write(append(data, '\n'))
	require.NoError(t, err)
}

func readFrame(t *testing.T, conn net.Conn, reader *bufio.Reader) protocol.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var frame protocol.ServerFrame
	require.NoError(t, json.Unmarshal(line, &frame))
	return frame
}

func Test_Session_Full_Conversation(t *testing.T) {
	req := require.New(t)
	dispatcher := newTestDispatcher(t)
	conn, reader, _ := startSession(t, dispatcher)

	send(t, conn, protocol.ClientFrame{Action: "register", Username: "alice", Password: lo.ToPtr("alice123")})
	welcome := readFrame(t, conn, reader)
	req.Equal("success", welcome.Status)
	req.NotEmpty(welcome.Token)

	send(t, conn, protocol.ClientFrame{Type: "create_room", RoomName: "General"})
	req.Equal(protocol.TypeRoomCreated, readFrame(t, conn, reader).Type)

	send(t, conn, protocol.ClientFrame{Type: "join_room", RoomName: "General"})
	req.Equal(protocol.TypeRoomJoined, readFrame(t, conn, reader).Type)
	req.Equal(protocol.TypeSystem, readFrame(t, conn, reader).Type)
	users := readFrame(t, conn, reader)
	req.Equal(protocol.TypeRoomUsers, users.Type)
	req.Equal([]string{"alice"}, users.Users)

	send(t, conn, protocol.ClientFrame{Type: "message", Content: "hello, room"})
	echo := readFrame(t, conn, reader)
	req.Equal(protocol.TypeMessage, echo.Type)
	req.Equal("alice", echo.Username)
	req.Equal("hello, room", echo.Message)
}

func Test_Session_Handles_Fragmented_Frames(t *testing.T) {
	req := require.New(t)
	dispatcher := newTestDispatcher(t)
	conn, reader, _ := startSession(t, dispatcher)

	payload := []byte(`{"action":"register","username":"alice","password":"alice123"}` + "\n")
	half := len(payload) / 2

	req.NoError(conn.SetWriteDeadline(time.Now().Add(2 * time.Second)))
	_, err := conn.Write(payload[:half])
	req.NoError(err)
	time.Sleep(20 * time.Millisecond)
	_, err = conn.Write(payload[half:])
	req.NoError(err)

	req.Equal("success", readFrame(t, conn, reader).Status)
}

func Test_Session_Malformed_Frame_Closes_Connection(t *testing.T) {
	req := require.New(t)
	dispatcher := newTestDispatcher(t)
	conn, reader, _ := startSession(t, dispatcher)

	req.NoError(conn.SetWriteDeadline(time.Now().Add(2 * time.Second)))
	_, err := conn.Write([]byte("this is not json\n"))
	req.NoError(err)

	// The session reports the protocol error, then the socket goes away.
	frame := readFrame(t, conn, reader)
	req.Equal(protocol.TypeError, frame.Type)
	req.Contains(frame.Message, "Protocol error")

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, err = reader.ReadBytes('\n')
	req.Error(err)
}

func Test_Session_Logout_Closes_Connection(t *testing.T) {
	req := require.New(t)
	dispatcher := newTestDispatcher(t)
	conn, reader, _ := startSession(t, dispatcher)

	send(t, conn, protocol.ClientFrame{Action: "register", Username: "alice", Password: lo.ToPtr("alice123")})
	req.Equal("success", readFrame(t, conn, reader).Status)

	send(t, conn, protocol.ClientFrame{Type: "logout"})
	req.Equal(protocol.TypeGoodbye, readFrame(t, conn, reader).Type)

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, err := reader.ReadBytes('\n')
	req.Error(err)
}

// attemptLogin opens a fresh session and tries one login, reporting the
// reply without failing the test, so callers can poll.
func attemptLogin(t *testing.T, dispatcher *runtime.Dispatcher, username, password string) (protocol.ServerFrame, bool) {
	t.Helper()
	conn, reader, _ := startSession(t, dispatcher)

	data, err := json.Marshal(protocol.ClientFrame{Action: "login", Username: username, Password: lo.ToPtr(password)})
	if err != nil {
		return protocol.ServerFrame{}, false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return protocol.ServerFrame{}, false
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return protocol.ServerFrame{}, false
	}
	var frame protocol.ServerFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return protocol.ServerFrame{}, false
	}
	return frame, true
}

// A session torn down while its registration is still executing must still
// release the username once the read loop finishes: cleanup runs after the
// in-flight action, never concurrently with it.
func Test_Session_Shutdown_During_Auth_Releases_Username(t *testing.T) {
	req := require.New(t)
	dispatcher := newTestDispatcher(t)
	conn, _, session := startSession(t, dispatcher)

	// The pipe is synchronous, so once send returns the session has read
	// the frame and is executing the registration. Shut down immediately,
	// likely mid password hash.
	send(t, conn, protocol.ClientFrame{Action: "register", Username: "alice", Password: lo.ToPtr("alice123")})
	session.Shutdown()

	req.Eventually(func() bool {
		frame, ok := attemptLogin(t, dispatcher, "alice", "alice123")
		return ok && frame.Status == "success"
	}, 5*time.Second, 50*time.Millisecond, "username was never released after shutdown")
}

func Test_Session_Broadcast_Between_Connections(t *testing.T) {
	req := require.New(t)
	dispatcher := newTestDispatcher(t)
	aliceConn, aliceReader, _ := startSession(t, dispatcher)
	bobConn, bobReader, _ := startSession(t, dispatcher)

	send(t, aliceConn, protocol.ClientFrame{Action: "register", Username: "alice", Password: lo.ToPtr("alice123")})
	req.Equal("success", readFrame(t, aliceConn, aliceReader).Status)
	send(t, bobConn, protocol.ClientFrame{Action: "register", Username: "bob", Password: lo.ToPtr("bob123")})
	req.Equal("success", readFrame(t, bobConn, bobReader).Status)

	send(t, aliceConn, protocol.ClientFrame{Type: "create_room", RoomName: "General"})
	req.Equal(protocol.TypeRoomCreated, readFrame(t, aliceConn, aliceReader).Type)
	send(t, aliceConn, protocol.ClientFrame{Type: "join_room", RoomName: "General"})
	req.Equal(protocol.TypeRoomJoined, readFrame(t, aliceConn, aliceReader).Type)
	req.Equal(protocol.TypeSystem, readFrame(t, aliceConn, aliceReader).Type)
	req.Equal(protocol.TypeRoomUsers, readFrame(t, aliceConn, aliceReader).Type)

	send(t, bobConn, protocol.ClientFrame{Type: "join_room", RoomName: "General"})
	req.Equal(protocol.TypeRoomJoined, readFrame(t, bobConn, bobReader).Type)
	req.Equal(protocol.TypeChatHistory, readFrame(t, bobConn, bobReader).Type)
	req.Equal(protocol.TypeSystem, readFrame(t, bobConn, bobReader).Type)
	req.Equal(protocol.TypeRoomUsers, readFrame(t, bobConn, bobReader).Type)

	// Alice sees bob's join notice, then his message.
	notice := readFrame(t, aliceConn, aliceReader)
	req.Equal(protocol.TypeSystem, notice.Type)
	req.Contains(notice.Message, "bob joined")

	send(t, bobConn, protocol.ClientFrame{Type: "message", Content: "hi alice"})
	for _, peer := range []struct {
		conn   net.Conn
		reader *bufio.Reader
	}{{aliceConn, aliceReader}, {bobConn, bobReader}} {
		frame := readFrame(t, peer.conn, peer.reader)
		req.Equal(protocol.TypeMessage, frame.Type)
		req.Equal("bob", frame.Username)
		req.Equal("hi alice", frame.Message)
	}
}
