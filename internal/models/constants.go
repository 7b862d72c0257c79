package models

// MasterPlaylistName is the reserved name of the singleton master catalog playlist.
const MasterPlaylistName = "Master Client Playlist"

// StreamType classifies a stream entry (values kept as stored in the database).
type StreamType string

// Stream type constants.
const (
	StreamTypeCanal StreamType = "CANAL"
	StreamTypeFilme StreamType = "FILME"
	StreamTypeSerie StreamType = "SERIE"
)

// Valid reports whether t is one of the known stream types.
func (t StreamType) Valid() bool {
	switch t {
	case StreamTypeCanal, StreamTypeFilme, StreamTypeSerie:
		return true
	}
	return false
}

// PlaylistStatus is the refresh state of a Playlist.
type PlaylistStatus string

// Playlist status constants. Verificando marks a playlist pending reprocessing.
const (
	StatusVerificando PlaylistStatus = "VERIFICANDO"
	StatusOnline      PlaylistStatus = "ONLINE"
	StatusOffline     PlaylistStatus = "OFFLINE"
)

// Role is a panel user role.
type Role string

// Role constants, highest privilege first.
const (
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleMasterReseller Role = "MASTER_RESELLER"
	RoleReseller       Role = "RESELLER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleMasterReseller, RoleReseller:
		return true
	}
	return false
}
