package services

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"mystiko/auth"
	"mystiko/errors"
	"mystiko/repositories"
)

func newTestService(t *testing.T) IAuthService {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewAuthService(
		repositories.NewAccountRepository(db),
		auth.NewTokenIssuer("test_secret", time.Hour),
	)
}

func Test_Register_Then_Login(t *testing.T) {
	req := require.New(t)
	service := newTestService(t)

	account, token, err := service.Register("Alice", "alice123")
	req.NoError(err)
	req.Equal("Alice", account.Username)
	req.NotEmpty(token)
	// The stored hash never equals the plain password.
	req.NotEqual("alice123", account.PasswordHash)

	account, token, err = service.Login("alice", "alice123")
	req.NoError(err)
	req.Equal("Alice", account.Username)
	req.NotEmpty(token)
}

func Test_Register_Rejects_Invalid_Input(t *testing.T) {
	req := require.New(t)
	service := newTestService(t)

	_, _, err := service.Register("al", "alice123")
	req.ErrorIs(err, errors.ErrInvalidUsername)

	_, _, err = service.Register("alice", "abc")
	req.ErrorIs(err, errors.ErrInvalidPassword)

	_, _, err = service.Register("alice", "alice123")
	req.NoError(err)
	_, _, err = service.Register("ALICE", "other456")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Login_Failures(t *testing.T) {
	req := require.New(t)
	service := newTestService(t)

	_, _, err := service.Login("ghost", "whatever")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, _, err = service.Register("alice", "alice123")
	req.NoError(err)

	_, _, err = service.Login("alice", "wrong")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
