package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"mystiko/domain"
	"mystiko/errors"
)

func Test_Append_Message_Room_Must_Exist(t *testing.T) {
	repository := NewMessageRepository(openTestDB(t))

	_, err := repository.AppendMessage(domain.Message{
		Room: "nowhere", Sender: "alice", Content: "hello", Kind: domain.KindChat,
	})
	require.ErrorIs(t, err, errors.ErrRoomNotFound)
}

func Test_Append_Message_Fills_Defaults(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	_, err := NewRoomRepository(db, 5).CreateRoom("General", "alice", "", "")
	req.NoError(err)

	stored, err := NewMessageRepository(db).AppendMessage(domain.Message{
		Room: "General", Sender: "alice", Content: "hello", Kind: domain.KindChat,
	})
	req.NoError(err)
	req.NotEqual(uuid.Nil, stored.ID)
	req.False(stored.CreatedAt.IsZero())
}

func Test_Recent_Messages_Chronological(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	_, err := NewRoomRepository(db, 5).CreateRoom("General", "alice", "", "")
	req.NoError(err)
	repository := NewMessageRepository(db)

	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		_, err = repository.AppendMessage(domain.Message{
			Room:      "General",
			Sender:    "alice",
			Content:   fmt.Sprintf("message %d", i),
			Kind:      domain.KindChat,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		req.NoError(err)
	}

	// A limit above the stored count returns everything, in send order.
	history, err := repository.RecentMessages("general", 50)
	req.NoError(err)
	req.Len(history, 10)
	for i, message := range history {
		req.Equal(fmt.Sprintf("message %d", i), message.Content)
	}

	// A tighter limit keeps only the newest entries, still oldest first.
	tail, err := repository.RecentMessages("General", 3)
	req.NoError(err)
	req.Equal([]string{"message 7", "message 8", "message 9"}, lo.Map(tail, func(m domain.Message, _ int) string {
		return m.Content
	}))
}

func Test_Recent_Messages_Empty_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	_, err := NewRoomRepository(db, 5).CreateRoom("General", "alice", "", "")
	req.NoError(err)

	history, err := NewMessageRepository(db).RecentMessages("General", 50)
	req.NoError(err)
	req.Empty(history)
}
