package service

import (
	"context"
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/generator"
	"github.com/fastpanel/fastpanel/internal/store"
)

// Placeholder playlists served with HTTP 200 so IPTV apps show a message
// instead of an error.
const (
	PlaceholderExpired  = "#EXTM3U\n#EXTINF:-1,Conta expirada\n"
	PlaceholderMissing  = "#EXTM3U\n#EXTINF:-1,Playlist do cliente não gerada ou não encontrada.\n"
	PlaceholderEmpty    = "#EXTM3U\n#EXTINF:-1,A playlist do cliente está vazia.\n"
	clientAuthFailedMsg = "Authentication failed."
)

// Playlist is a client playlist ready to be served.
type Playlist struct {
	Content string
	// Filename is set only for a real generated playlist.
	Filename string
}

// Placeholder reports whether p is one of the placeholder playlists.
func (p Playlist) Placeholder() bool { return p.Filename == "" }

// ClientPlaylist authenticates a client and returns its generated
// playlist, or a placeholder when the account expired or the playlist is
// missing or blank.
func (s *Service) ClientPlaylist(ctx context.Context, username, password string) (Playlist, error) {
	if username == "" || password == "" {
		return Playlist{}, apperr.Validation("Username and password are required.")
	}
	client, err := s.store.GetClientByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return Playlist{}, apperr.Unauthorized(clientAuthFailedMsg)
	}
	if err != nil {
		return Playlist{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(password)) != nil {
		return Playlist{}, apperr.Unauthorized(clientAuthFailedMsg)
	}
	if client.Expired(s.opts.Now()) {
		return Playlist{Content: PlaceholderExpired}, nil
	}

	content, err := s.files.ReadClientPlaylist(username)
	if errors.Is(err, os.ErrNotExist) {
		s.log.WithField("username", username).Warn("client playlist not generated")
		return Playlist{Content: PlaceholderMissing}, nil
	}
	if err != nil {
		return Playlist{}, apperr.TransientIO(err, "could not read client playlist")
	}
	if strings.TrimSpace(content) == "" {
		return Playlist{Content: PlaceholderEmpty}, nil
	}
	return Playlist{Content: content, Filename: generator.SanitizeName(username) + ".m3u"}, nil
}
