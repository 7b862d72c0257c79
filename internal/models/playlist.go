package models

import "time"

// Playlist is a refreshable playlist tracked by the background worker.
// URL is either an http(s) address, a file:// temp file, or empty for the master playlist.
type Playlist struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	URL       string         `json:"url,omitempty"`
	FileName  string         `json:"fileName,omitempty"`
	Priority  int            `json:"priority"`
	OwnerID   int64          `json:"ownerId"`
	Status    PlaylistStatus `json:"status"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
}

// IsMaster reports whether p is the master catalog playlist.
func (p Playlist) IsMaster() bool {
	return p.Name == MasterPlaylistName
}

// SourcePlaylist is an operator-managed M3U file on disk.
type SourcePlaylist struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	FilePath    string     `json:"filePath"`
	StreamCount int        `json:"streamCount"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}
