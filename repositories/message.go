//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"mystiko/domain"
	"mystiko/errors"
)

type IMessageRepository interface {
	AppendMessage(message domain.Message) (domain.Message, error)
	RecentMessages(room string, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db *badger.DB
}

func NewMessageRepository(db *badger.DB) IMessageRepository {
	return &MessageRepository{db: db}
}

type storedMessage struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Kind    string `json:"kind"`
	At      int64  `json:"at"`
}

func messagePrefix(room string) []byte {
	return []byte("msg:" + strings.ToLower(room) + ":")
}

// messageKey is "msg:{room}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero-padded nanosecond timestamp makes lexicographic
//     key order chronological, so a prefix scan needs no sorting.
//  2. The UUID disambiguates two messages written in the same nanosecond.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		strings.ToLower(message.Room),
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

// AppendMessage persists one message. The room-existence check and the
// write share a transaction, so a message can never outlive its room's
// deletion. Only chat and system kinds reach this method.
func (m *MessageRepository) AppendMessage(message domain.Message) (domain.Message, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	record := storedMessage{
		ID:      message.ID.String(),
		Room:    message.Room,
		Sender:  message.Sender,
		Content: message.Content,
		Kind:    string(message.Kind),
		At:      message.CreatedAt.UnixNano(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(message.Room)); err == badger.ErrKeyNotFound {
			return errors.ErrRoomNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(messageKey(message), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// RecentMessages returns the most recent limit messages of a room in
// chronological order. It walks the keyspace backwards from the newest
// possible key, collects up to limit entries, then reverses them.
func (m *MessageRepository) RecentMessages(room string, limit int) ([]domain.Message, error) {
	var records []storedMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the last possible timestamp for this room.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(records) == limit {
				break
			}
			var record storedMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse iteration yielded newest first.
	lo.Reverse(records)
	return lo.Map(records, func(record storedMessage, _ int) domain.Message {
		return toMessage(record)
	}), nil
}

func toMessage(record storedMessage) domain.Message {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		id = uuid.Nil
	}
	return domain.Message{
		ID:        id,
		Room:      record.Room,
		Sender:    record.Sender,
		Content:   record.Content,
		Kind:      domain.MessageKind(record.Kind),
		CreatedAt: time.Unix(0, record.At).UTC(),
	}
}
