//go:generate go run go.uber.org/mock/mockgen -source=account.go -destination=../mocks/mock_account_repository.go -package=mocks

// Package repositories is the durable-storage boundary of the server.
// Everything is stored in BadgerDB; each exported call is one transaction,
// so callers never observe a partially-applied create or delete.
package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"mystiko/domain"
	"mystiko/errors"
)

type IAccountRepository interface {
	CreateAccount(username, passwordHash string) (domain.Account, error)
	GetAccount(username string) (domain.Account, error)
	AccountCount() (int, error)
}

type AccountRepository struct {
	db *badger.DB
}

func NewAccountRepository(db *badger.DB) IAccountRepository {
	return &AccountRepository{db: db}
}

// storedAccount is the on-disk shape. The key carries the lowercased
// username, the value keeps the original casing for display.
type storedAccount struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

func accountKey(username string) []byte {
	return []byte("user:" + strings.ToLower(username))
}

// CreateAccount persists a new account. Uniqueness is case-insensitive and
// checked inside the same transaction as the write.
func (a *AccountRepository) CreateAccount(username, passwordHash string) (domain.Account, error) {
	now := time.Now().UTC()
	record := storedAccount{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now.Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.Account{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		key := accountKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.Account{}, err
	}

	return domain.Account{Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetAccount looks an account up by username, case-insensitively.
func (a *AccountRepository) GetAccount(username string) (domain.Account, error) {
	var record storedAccount
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(username))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return domain.Account{}, err
	}

	return domain.Account{
		Username:     record.Username,
		PasswordHash: record.PasswordHash,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
	}, nil
}

// AccountCount reports the number of registered accounts.
func (a *AccountRepository) AccountCount() (int, error) {
	return countPrefix(a.db, []byte("user:"))
}

// countPrefix counts keys under a prefix without loading values.
func countPrefix(db *badger.DB, prefix []byte) (int, error) {
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
