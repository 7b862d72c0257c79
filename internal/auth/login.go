package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store"
)

// Users looks up panel operators by name.
type Users interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Login checks the operator's password and issues a token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func Login(ctx context.Context, users Users, tokens *Tokens, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperr.Validation("Please provide username and password.")
	}
	u, err := users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.Unauthorized("Invalid credentials.")
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", apperr.Unauthorized("Invalid credentials.")
	}
	token, err := tokens.Issue(*u)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
