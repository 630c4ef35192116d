//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"mystiko/auth"
	"mystiko/domain"
	"mystiko/errors"
	"mystiko/repositories"
)

type Token string

type IAuthService interface {
	Register(username, password string) (domain.Account, Token, error)
	Login(username, password string) (domain.Account, Token, error)
}

type AuthService struct {
	accounts repositories.IAccountRepository
	tokens   auth.TokenIssuer
}

func NewAuthService(accounts repositories.IAccountRepository, tokens auth.TokenIssuer) IAuthService {
	return &AuthService{accounts: accounts, tokens: tokens}
}

// Register validates the requested identity, hashes the password, and
// persists the account. Validation runs before any expensive
// cryptographic work.
func (s *AuthService) Register(username, password string) (domain.Account, Token, error) {
	req := auth.RegisterRequest{Username: username, Password: password}
	if err := auth.ValidateRegister(req); err != nil {
		return domain.Account{}, "", err
	}

	// Hashing happens here so the repository never sees a plain password.
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	account, err := s.accounts.CreateAccount(username, hashed)
	if err != nil {
		return domain.Account{}, "", err
	}

	token, err := s.tokens.Generate(account.Username)
	if err != nil {
		return domain.Account{}, "", errors.ErrTokenGeneration
	}
	return account, Token(token), nil
}

// Login verifies credentials against the stored hash. The returned account
// carries the username with its registered casing.
func (s *AuthService) Login(username, password string) (domain.Account, Token, error) {
	account, err := s.accounts.GetAccount(username)
	if err != nil {
		return domain.Account{}, "", err
	}

	match, err := auth.ComparePassword(password, account.PasswordHash)
	if err != nil || !match {
		return domain.Account{}, "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(account.Username)
	if err != nil {
		return domain.Account{}, "", errors.ErrTokenGeneration
	}
	return account, Token(token), nil
}
