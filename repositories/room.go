//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"mystiko/domain"
	"mystiko/errors"
)

type IRoomRepository interface {
	CreateRoom(name, creator, description, passwordHash string) (domain.Room, error)
	GetRoom(name string) (domain.Room, error)
	DeleteRoom(name, requester string) error
	ListRooms(search string) ([]domain.Room, error)
	RoomsByCreator(creator string) ([]domain.Room, error)
	RoomCount() (int, error)
}

type RoomRepository struct {
	db              *badger.DB
	maxRoomsPerUser int
}

func NewRoomRepository(db *badger.DB, maxRoomsPerUser int) IRoomRepository {
	return &RoomRepository{db: db, maxRoomsPerUser: maxRoomsPerUser}
}

type storedRoom struct {
	Name         string `json:"name"`
	Creator      string `json:"creator"`
	Description  string `json:"description"`
	PasswordHash string `json:"password_hash,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

func roomKey(name string) []byte {
	return []byte("room:" + strings.ToLower(name))
}

const adminUsername = "admin"

// CreateRoom persists a new room. The duplicate check and the per-user
// room count both run inside the write transaction, so two concurrent
// creators cannot slip past the limit. The admin account is exempt.
func (r *RoomRepository) CreateRoom(name, creator, description, passwordHash string) (domain.Room, error) {
	now := time.Now().UTC()
	record := storedRoom{
		Name:         name,
		Creator:      creator,
		Description:  description,
		PasswordHash: passwordHash,
		CreatedAt:    now.Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.Room{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := roomKey(name)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrRoomAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if !strings.EqualFold(creator, adminUsername) {
			owned, err := countRoomsByCreator(txn, creator)
			if err != nil {
				return err
			}
			if owned >= r.maxRoomsPerUser {
				return errors.ErrRoomLimitReached
			}
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(record), nil
}

// GetRoom retrieves a room by name, case-insensitively.
func (r *RoomRepository) GetRoom(name string) (domain.Room, error) {
	var record storedRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return readRoom(txn, name, &record)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(record), nil
}

// DeleteRoom removes a room and every message stored under it in a single
// transaction. Only the recorded creator (or admin) may delete a room.
func (r *RoomRepository) DeleteRoom(name, requester string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var record storedRoom
		if err := readRoom(txn, name, &record); err != nil {
			return err
		}
		if !strings.EqualFold(record.Creator, requester) && !strings.EqualFold(requester, adminUsername) {
			return errors.ErrNotRoomOwner
		}

		if err := txn.Delete(roomKey(name)); err != nil {
			return err
		}

		prefix := messagePrefix(record.Name)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRooms returns all rooms ordered by name, optionally filtered by a
// case-insensitive substring match.
func (r *RoomRepository) ListRooms(search string) ([]domain.Room, error) {
	return r.scanRooms(func(record storedRoom) bool {
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(record.Name), strings.ToLower(search))
	})
}

// RoomsByCreator returns all rooms a user created, ordered by name.
func (r *RoomRepository) RoomsByCreator(creator string) ([]domain.Room, error) {
	return r.scanRooms(func(record storedRoom) bool {
		return strings.EqualFold(record.Creator, creator)
	})
}

// RoomCount reports the number of durable rooms.
func (r *RoomRepository) RoomCount() (int, error) {
	return countPrefix(r.db, []byte("room:"))
}

func (r *RoomRepository) scanRooms(keep func(storedRoom) bool) ([]domain.Room, error) {
	var records []storedRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record storedRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			if keep(record) {
				records = append(records, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
	})
	return lo.Map(records, func(record storedRoom, _ int) domain.Room {
		return toRoom(record)
	}), nil
}

func countRoomsByCreator(txn *badger.Txn, creator string) (int, error) {
	prefix := []byte("room:")
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	owned := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var record storedRoom
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
		if err != nil {
			return 0, err
		}
		if strings.EqualFold(record.Creator, creator) {
			owned++
		}
	}
	return owned, nil
}

func readRoom(txn *badger.Txn, name string, record *storedRoom) error {
	item, err := txn.Get(roomKey(name))
	if err == badger.ErrKeyNotFound {
		return errors.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, record)
	})
}

func toRoom(record storedRoom) domain.Room {
	return domain.Room{
		Name:         record.Name,
		Creator:      record.Creator,
		Description:  record.Description,
		PasswordHash: record.PasswordHash,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
	}
}
