package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store"
)

const (
	userNotFound     = "User not found."
	userTaken        = "Username or email already exists."
	defaultTokenDays = 7
)

// UserInput is the body of an operator creation.
type UserInput struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// UserUpdate changes an operator's name and, when set, password. An empty
// Username keeps the current one.
type UserUpdate struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterInput is the body of a self-registration with a token.
type RegisterInput struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	WhatsApp string `json:"whatsapp"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// mayGrant reports whether c can create accounts, or tokens, with role.
// A master reseller only brings in resellers.
func (c Caller) mayGrant(role models.Role) bool {
	switch c.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleMasterReseller:
		return role == models.RoleReseller
	}
	return false
}

// ListUsers returns every operator, filtered by role when role names a
// known one. Unknown roles are ignored.
func (s *Service) ListUsers(ctx context.Context, c Caller, role string) ([]models.User, error) {
	if !c.IsSuperAdmin() {
		return nil, apperr.Forbidden("You do not have permission to perform this action.")
	}
	var filter *models.Role
	if r := models.Role(role); r.Valid() {
		filter = &r
	}
	list, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	if list == nil {
		list = []models.User{}
	}
	return list, nil
}

// visibleUser loads an operator c may act on: itself, one it created, or
// anyone for a super admin. Others look missing.
func (s *Service) visibleUser(ctx context.Context, c Caller, id int64) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, storeErr(err, userNotFound, "")
	}
	if c.IsSuperAdmin() || u.ID == c.UserID || (u.CreatedByID != nil && *u.CreatedByID == c.UserID) {
		return u, nil
	}
	return nil, apperr.NotFound(userNotFound)
}

func (s *Service) GetUser(ctx context.Context, c Caller, id int64) (*models.User, error) {
	return s.visibleUser(ctx, c, id)
}

// CreateUser stores a new operator created by c.
func (s *Service) CreateUser(ctx context.Context, c Caller, in UserInput) (*models.User, error) {
	if in.Username == "" || in.Password == "" || in.Role == "" {
		return nil, apperr.Validation("Please provide username, password, and role.")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("Invalid role specified.")
	}
	if !c.mayGrant(in.Role) {
		return nil, apperr.Forbidden("You are not allowed to create users with role %s.", in.Role)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	creator := c.UserID
	u := &models.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Email:        optional(in.Email),
		CreatedByID:  &creator,
	}
	id, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return nil, storeErr(err, "", userTaken)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "role": in.Role, "created_by": c.UserID}).Info("user created")
	return s.store.GetUser(ctx, id)
}

// UpdateUser renames an operator and optionally resets its password.
func (s *Service) UpdateUser(ctx context.Context, c Caller, id int64, in UserUpdate) (*models.User, error) {
	u, err := s.visibleUser(ctx, c, id)
	if err != nil {
		return nil, err
	}
	username := u.Username
	if in.Username != "" {
		username = in.Username
	}
	var hash string
	if in.Password != "" {
		if hash, err = s.hash(in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateUser(ctx, id, username, hash); err != nil {
		return nil, storeErr(err, userNotFound, "Username already exists.")
	}
	return s.store.GetUser(ctx, id)
}

// DeleteUser removes an operator. Its clients go with it, so their
// generated playlist files are removed too.
func (s *Service) DeleteUser(ctx context.Context, c Caller, id int64) error {
	if id == c.UserID {
		return apperr.Validation("You cannot delete your own account.")
	}
	if _, err := s.visibleUser(ctx, c, id); err != nil {
		return err
	}
	clients, err := s.store.ListClients(ctx, &id)
	if err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return storeErr(err, userNotFound, "")
	}
	for _, cl := range clients {
		if err := s.files.RemoveClientPlaylist(cl.Username); err != nil {
			s.log.WithError(err).WithField("username", cl.Username).Warn("remove client playlist")
		}
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "clients": len(clients)}).Info("user deleted")
	return nil
}

// --- registration tokens ---

func newRegistrationToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateToken issues a single-use registration token for role, valid
// for days (7 when nil).
func (s *Service) GenerateToken(ctx context.Context, c Caller, role models.Role, days *int) (*models.RegistrationToken, error) {
	if role == "" {
		return nil, apperr.Validation("Role is required.")
	}
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role specified.")
	}
	if !c.mayGrant(role) {
		return nil, apperr.Forbidden("You are not allowed to invite users with role %s.", role)
	}
	n := defaultTokenDays
	if days != nil {
		n = *days
	}
	if n <= 0 {
		return nil, apperr.Validation("daysValid must be a positive number of days.")
	}
	value, err := newRegistrationToken()
	if err != nil {
		return nil, err
	}
	t := &models.RegistrationToken{
		Token:       value,
		Role:        role,
		ExpiresAt:   s.opts.Now().AddDate(0, 0, n),
		CreatedByID: c.UserID,
	}
	if t.ID, err = s.store.CreateRegistrationToken(ctx, t); err != nil {
		return nil, storeErr(err, "", "")
	}
	return t, nil
}

func tokenErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("Token não encontrado.")
	case errors.Is(err, store.ErrTokenExpired):
		return apperr.Validation("Token expirado.")
	case errors.Is(err, store.ErrTokenUsed):
		return apperr.Validation("Token já utilizado.")
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict("Nome de usuário ou email já existem.")
	}
	return err
}

// ValidateToken returns the role a usable token grants.
func (s *Service) ValidateToken(ctx context.Context, token string) (models.Role, error) {
	t, err := s.store.GetRegistrationToken(ctx, token)
	if err != nil {
		return "", tokenErr(err)
	}
	switch {
	case t.UsedAt != nil:
		return "", tokenErr(store.ErrTokenUsed)
	case !t.Usable(s.opts.Now()):
		return "", tokenErr(store.ErrTokenExpired)
	}
	return t.Role, nil
}

// Register creates an operator from a registration token and consumes it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	if in.Token == "" || in.Username == "" || in.Password == "" {
		return 0, apperr.Validation("Token, nome de usuário e senha são obrigatórios.")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return 0, err
	}
	u := &models.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        optional(in.Email),
		WhatsApp:     optional(in.WhatsApp),
	}
	id, err := s.store.RedeemRegistrationToken(ctx, in.Token, u, s.opts.Now())
	if err != nil {
		return 0, tokenErr(err)
	}
	s.log.WithField("user_id", id).Info("user registered with token")
	return id, nil
}
