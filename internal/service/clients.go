package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/queue"
	"github.com/fastpanel/fastpanel/internal/store"
)

const clientNotFound = "Client not found or you do not have permission to modify it."

// ClientInput is the body of a client creation. Expiration is a number of
// months; 0 means lifetime.
type ClientInput struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	Expiration  *int    `json:"expiration"`
	PlaylistIDs []int64 `json:"playlistIds"`
}

// RenewExpiration extends current by months, starting from now when the
// client has no expiration. Zero months means lifetime (nil).
func RenewExpiration(current *time.Time, months int, now time.Time) *time.Time {
	if months == 0 {
		return nil
	}
	base := now
	if current != nil {
		base = *current
	}
	next := base.AddDate(0, months, 0)
	return &next
}

// ListClients returns the caller's clients, or every client for a super admin.
func (s *Service) ListClients(ctx context.Context, c Caller) ([]models.Client, error) {
	var owner *int64
	if !c.IsSuperAdmin() {
		owner = &c.UserID
	}
	list, err := s.store.ListClients(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("ListClients: %w", err)
	}
	if list == nil {
		list = []models.Client{}
	}
	return list, nil
}

// CreateClient stores a client and queues generation of its playlist. If
// the job cannot be queued the client is removed again, so every stored
// client has exactly one job.
func (s *Service) CreateClient(ctx context.Context, c Caller, in ClientInput) (*models.Client, error) {
	if in.Username == "" || in.Password == "" || in.Expiration == nil {
		return nil, apperr.Validation("Please provide username, password, and expiration.")
	}
	if len(in.PlaylistIDs) == 0 {
		return nil, apperr.Validation("Please select at least one source playlist.")
	}
	if *in.Expiration < 0 {
		return nil, apperr.Validation("Expiration must be zero (lifetime) or a positive number of months.")
	}
	if !filestore.ValidName(in.Username) {
		return nil, apperr.Validation("Username contains characters that are not allowed.")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	client := &models.Client{
		Username:       in.Username,
		PasswordHash:   hash,
		ExpirationDate: RenewExpiration(nil, *in.Expiration, s.opts.Now()),
		ResellerID:     c.UserID,
	}
	id, err := s.store.CreateClient(ctx, client, uniqueIDs(in.PlaylistIDs))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperr.Conflict("Client username already exists.")
		case errors.Is(err, store.ErrInvalidReference):
			return nil, apperr.Validation("One or more of the selected playlists does not exist.")
		}
		return nil, fmt.Errorf("CreateClient: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"client_id": id, "username": in.Username})

	if err := s.jobs.Enqueue(ctx, queue.Job{ClientID: id, Username: in.Username}); err != nil {
		if derr := s.store.DeleteClient(ctx, id); derr != nil {
			log.WithError(derr).Error("roll back client after enqueue failure")
		}
		return nil, apperr.TransientIO(err, "could not queue playlist generation")
	}
	log.Info("client created, playlist generation queued")
	return s.store.GetClient(ctx, id)
}

// uniqueIDs drops repeated ids, keeping the first position of each.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ownedClient loads a client the caller may act on. Other resellers'
// clients look missing.
func (s *Service) ownedClient(ctx context.Context, c Caller, id int64) (*models.Client, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, storeErr(err, clientNotFound, "")
	}
	if !c.IsSuperAdmin() && client.ResellerID != c.UserID {
		return nil, apperr.NotFound(clientNotFound)
	}
	return client, nil
}

// DeleteClient removes a client and its generated playlist file.
func (s *Service) DeleteClient(ctx context.Context, c Caller, id int64) error {
	client, err := s.ownedClient(ctx, c, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return storeErr(err, clientNotFound, "")
	}
	if err := s.files.RemoveClientPlaylist(client.Username); err != nil {
		s.log.WithError(err).WithField("username", client.Username).Warn("remove client playlist")
	}
	return nil
}

// ResetPassword sets a new password for a client.
func (s *Service) ResetPassword(ctx context.Context, c Caller, id int64, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("New password cannot be empty.")
	}
	if _, err := s.ownedClient(ctx, c, id); err != nil {
		return err
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateClientPassword(ctx, id, hash); err != nil {
		return storeErr(err, clientNotFound, "")
	}
	return nil
}

// RenewClient extends a client's access by months (0 for lifetime).
func (s *Service) RenewClient(ctx context.Context, c Caller, id int64, months *int) (*models.Client, error) {
	if months == nil || *months < 0 {
		return nil, apperr.Validation("Please provide a valid expiration duration in months.")
	}
	client, err := s.ownedClient(ctx, c, id)
	if err != nil {
		return nil, err
	}
	next := RenewExpiration(client.ExpirationDate, *months, s.opts.Now())
	if err := s.store.UpdateClientExpiration(ctx, id, next); err != nil {
		return nil, storeErr(err, clientNotFound, "")
	}
	client.ExpirationDate = next
	return client, nil
}
