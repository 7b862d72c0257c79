// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store"
)

// Memory is a goroutine-safe in-memory store.Store. Set the Err* fields to
// make the matching method fail.
type Memory struct {
	mu sync.Mutex

	nextID      int64
	playlists   map[int64]models.Playlist
	streams     map[int64]models.Stream
	sources     map[int64]models.SourcePlaylist
	clients     map[int64]models.Client
	assignments map[int64][]int64
	users       map[int64]models.User
	regTokens   map[string]models.RegistrationToken
	settings    map[string]string

	ErrSetClientM3UURL error
	ErrGetClient       error
	ErrCreateClient    error
	ErrListStreamURLs  error
}

var _ store.Store = (*Memory)(nil)

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{
		playlists:   make(map[int64]models.Playlist),
		streams:     make(map[int64]models.Stream),
		sources:     make(map[int64]models.SourcePlaylist),
		clients:     make(map[int64]models.Client),
		assignments: make(map[int64][]int64),
		users:       make(map[int64]models.User),
		regTokens:   make(map[string]models.RegistrationToken),
		settings:    make(map[string]string),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func notFound(op string) error { return fmt.Errorf("%s: %w", op, store.ErrNotFound) }

// AddUser registers a panel operator and returns its id.
func (m *Memory) AddUser(u models.User) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	m.users[u.ID] = u
	return u.ID
}

// --- playlists ---

func (m *Memory) sortedPlaylists(keep func(models.Playlist) bool) []models.Playlist {
	var out []models.Playlist
	for _, p := range m.playlists {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ListPlaylists(context.Context) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedPlaylists(func(models.Playlist) bool { return true }), nil
}

func (m *Memory) ListPlaylistsByStatus(_ context.Context, statuses ...models.PlaylistStatus) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedPlaylists(func(p models.Playlist) bool {
		for _, s := range statuses {
			if p.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (m *Memory) GetPlaylist(_ context.Context, id int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, notFound("GetPlaylist")
	}
	return &p, nil
}

func (m *Memory) master() (models.Playlist, bool) {
	for _, p := range m.playlists {
		if p.IsMaster() {
			return p, true
		}
	}
	return models.Playlist{}, false
}

func (m *Memory) GetMasterPlaylist(context.Context) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.master()
	if !ok {
		return nil, notFound("GetMasterPlaylist")
	}
	return &p, nil
}

func (m *Memory) EnsureMasterPlaylist(_ context.Context, ownerID int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.master(); ok {
		return &p, nil
	}
	now := time.Now()
	p := models.Playlist{ID: m.id(), Name: models.MasterPlaylistName, OwnerID: ownerID, Status: models.StatusVerificando, CreatedAt: &now}
	m.playlists[p.ID] = p
	return &p, nil
}

func (m *Memory) CreatePlaylist(_ context.Context, p *models.Playlist) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.IsMaster() {
		if _, ok := m.master(); ok {
			return 0, fmt.Errorf("CreatePlaylist: %w", store.ErrConflict)
		}
	}
	cp := *p
	cp.ID = m.id()
	if cp.Status == "" {
		cp.Status = models.StatusVerificando
	}
	m.playlists[cp.ID] = cp
	return cp.ID, nil
}

func (m *Memory) SetPlaylistStatus(_ context.Context, id int64, status models.PlaylistStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return notFound("SetPlaylistStatus")
	}
	p.Status = status
	m.playlists[id] = p
	return nil
}

func (m *Memory) DeletePlaylist(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return notFound("DeletePlaylist")
	}
	delete(m.playlists, id)
	for sid, s := range m.streams {
		if s.PlaylistID == id {
			delete(m.streams, sid)
		}
	}
	return nil
}

// --- streams ---

func (m *Memory) streamsOf(playlistID int64) []models.Stream {
	var out []models.Stream
	for _, s := range m.streams {
		if s.PlaylistID == playlistID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ListStreams(_ context.Context, playlistID int64) ([]models.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamsOf(playlistID), nil
}

func (m *Memory) ListStreamURLs(_ context.Context, playlistID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ErrListStreamURLs != nil {
		return nil, m.ErrListStreamURLs
	}
	var urls []string
	for _, s := range m.streamsOf(playlistID) {
		urls = append(urls, s.StreamURL)
	}
	return urls, nil
}

func (m *Memory) insert(playlistID int64, entries []models.StreamEntry) int64 {
	seen := make(map[string]bool)
	for _, s := range m.streamsOf(playlistID) {
		seen[s.StreamURL] = true
	}
	var n int64
	for _, e := range entries {
		if seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		t := e.StreamType
		if !t.Valid() {
			t = models.StreamTypeCanal
		}
		s := models.Stream{ID: m.id(), PlaylistID: playlistID, Name: e.Name, StreamURL: e.URL, StreamType: t}
		m.streams[s.ID] = s
		n++
	}
	return n
}

func (m *Memory) AddStreams(_ context.Context, playlistID int64, entries []models.StreamEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[playlistID]; !ok {
		return 0, fmt.Errorf("AddStreams: %w", store.ErrInvalidReference)
	}
	return m.insert(playlistID, entries), nil
}

func (m *Memory) ReplaceStreams(_ context.Context, playlistID int64, entries []models.StreamEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[playlistID]; !ok {
		return 0, fmt.Errorf("ReplaceStreams: %w", store.ErrInvalidReference)
	}
	for _, s := range m.streamsOf(playlistID) {
		delete(m.streams, s.ID)
	}
	return m.insert(playlistID, entries), nil
}

func (m *Memory) stream(playlistID, streamID int64) (models.Stream, bool) {
	s, ok := m.streams[streamID]
	return s, ok && s.PlaylistID == playlistID
}

func (m *Memory) UpdateStream(_ context.Context, playlistID int64, upd *models.Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stream(playlistID, upd.ID)
	if !ok {
		return notFound("UpdateStream")
	}
	for _, other := range m.streamsOf(playlistID) {
		if other.ID != s.ID && other.StreamURL == upd.StreamURL {
			return fmt.Errorf("UpdateStream: %w", store.ErrConflict)
		}
	}
	s.Name, s.StreamURL, s.StreamType = upd.Name, upd.StreamURL, upd.StreamType
	m.streams[s.ID] = s
	return nil
}

func (m *Memory) UpdateStreamType(_ context.Context, playlistID, streamID int64, t models.StreamType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stream(playlistID, streamID)
	if !ok {
		return notFound("UpdateStreamType")
	}
	s.StreamType = t
	m.streams[s.ID] = s
	return nil
}

func (m *Memory) DeleteStream(_ context.Context, playlistID, streamID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stream(playlistID, streamID); !ok {
		return notFound("DeleteStream")
	}
	delete(m.streams, streamID)
	return nil
}

func (m *Memory) CountStreamsByType(_ context.Context, playlistID int64) (map[models.StreamType]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.StreamType]int64{
		models.StreamTypeCanal: 0,
		models.StreamTypeFilme: 0,
		models.StreamTypeSerie: 0,
	}
	for _, s := range m.streamsOf(playlistID) {
		counts[s.StreamType]++
	}
	return counts, nil
}

// --- source playlists ---

func (m *Memory) ListSourcePlaylists(context.Context) ([]models.SourcePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SourcePlaylist, 0, len(m.sources))
	for _, sp := range m.sources {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetSourcePlaylist(_ context.Context, id int64) (*models.SourcePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.sources[id]
	if !ok {
		return nil, notFound("GetSourcePlaylist")
	}
	return &sp, nil
}

func (m *Memory) CreateSourcePlaylist(_ context.Context, sp *models.SourcePlaylist) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sources {
		if existing.Name == sp.Name {
			return 0, fmt.Errorf("CreateSourcePlaylist: %w", store.ErrConflict)
		}
	}
	cp := *sp
	cp.ID = m.id()
	now := time.Now()
	cp.CreatedAt = &now
	m.sources[cp.ID] = cp
	return cp.ID, nil
}

func (m *Memory) UpdateSourceStreamCount(_ context.Context, id int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.sources[id]
	if !ok {
		return notFound("UpdateSourceStreamCount")
	}
	sp.StreamCount = count
	m.sources[id] = sp
	return nil
}

func (m *Memory) DeleteSourcePlaylist(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return notFound("DeleteSourcePlaylist")
	}
	delete(m.sources, id)
	for cid, ids := range m.assignments {
		kept := ids[:0]
		for _, sid := range ids {
			if sid != id {
				kept = append(kept, sid)
			}
		}
		m.assignments[cid] = kept
	}
	return nil
}

// --- clients ---

func (m *Memory) ListClients(_ context.Context, resellerID *int64) ([]models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Client
	for _, c := range m.clients {
		if resellerID == nil || c.ResellerID == *resellerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) CountClients(ctx context.Context, resellerID *int64) (int64, error) {
	list, err := m.ListClients(ctx, resellerID)
	return int64(len(list)), err
}

func (m *Memory) GetClient(_ context.Context, id int64) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ErrGetClient != nil {
		return nil, m.ErrGetClient
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, notFound("GetClient")
	}
	c.SourcePlaylists = nil
	for _, sid := range m.assignments[id] {
		if sp, ok := m.sources[sid]; ok {
			c.SourcePlaylists = append(c.SourcePlaylists, sp)
		}
	}
	return &c, nil
}

func (m *Memory) GetClientByUsername(_ context.Context, username string) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.Username == username {
			return &c, nil
		}
	}
	return nil, notFound("GetClientByUsername")
}

func (m *Memory) CreateClient(_ context.Context, c *models.Client, sourceIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ErrCreateClient != nil {
		return 0, m.ErrCreateClient
	}
	for _, existing := range m.clients {
		if existing.Username == c.Username {
			return 0, fmt.Errorf("CreateClient: %w", store.ErrConflict)
		}
	}
	assigned := make(map[int64]bool, len(sourceIDs))
	for _, sid := range sourceIDs {
		if _, ok := m.sources[sid]; !ok {
			return 0, fmt.Errorf("CreateClient: source %d: %w", sid, store.ErrInvalidReference)
		}
		// (client_id, source_playlist_id) is the primary key in Postgres.
		if assigned[sid] {
			return 0, fmt.Errorf("CreateClient: source %d assigned twice: %w", sid, store.ErrConflict)
		}
		assigned[sid] = true
	}
	cp := *c
	cp.ID = m.id()
	cp.SourcePlaylists = nil
	now := time.Now()
	cp.CreatedAt = &now
	m.clients[cp.ID] = cp
	m.assignments[cp.ID] = append([]int64(nil), sourceIDs...)
	return cp.ID, nil
}

func (m *Memory) DeleteClient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return notFound("DeleteClient")
	}
	delete(m.clients, id)
	delete(m.assignments, id)
	return nil
}

func (m *Memory) updateClient(op string, id int64, fn func(*models.Client)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return notFound(op)
	}
	fn(&c)
	m.clients[id] = c
	return nil
}

func (m *Memory) UpdateClientPassword(_ context.Context, id int64, hash string) error {
	return m.updateClient("UpdateClientPassword", id, func(c *models.Client) { c.PasswordHash = hash })
}

func (m *Memory) UpdateClientExpiration(_ context.Context, id int64, expiration *time.Time) error {
	return m.updateClient("UpdateClientExpiration", id, func(c *models.Client) { c.ExpirationDate = expiration })
}

func (m *Memory) SetClientM3UURL(_ context.Context, id int64, url string) error {
	if m.ErrSetClientM3UURL != nil {
		return m.ErrSetClientM3UURL
	}
	return m.updateClient("SetClientM3UURL", id, func(c *models.Client) { c.M3UURL = &url })
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, notFound("GetUserByUsername")
}

func (m *Memory) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("GetUser")
	}
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context, role *models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if role == nil || u.Role == *role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// taken reports whether another user than id holds username or email.
func (m *Memory) taken(id int64, username string, email *string) bool {
	for _, u := range m.users {
		if u.ID == id {
			continue
		}
		if u.Username == username {
			return true
		}
		if email != nil && u.Email != nil && *u.Email == *email {
			return true
		}
	}
	return false
}

func (m *Memory) createUser(u *models.User) (int64, error) {
	if m.taken(0, u.Username, u.Email) {
		return 0, store.ErrConflict
	}
	cp := *u
	cp.ID = m.id()
	now := time.Now()
	cp.CreatedAt = &now
	m.users[cp.ID] = cp
	return cp.ID, nil
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.createUser(u)
	if err != nil {
		return 0, fmt.Errorf("CreateUser: %w", err)
	}
	return id, nil
}

func (m *Memory) UpdateUser(_ context.Context, id int64, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return notFound("UpdateUser")
	}
	if m.taken(id, username, nil) {
		return fmt.Errorf("UpdateUser: %w", store.ErrConflict)
	}
	u.Username = username
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	m.users[id] = u
	return nil
}

// DeleteUser cascades like the schema: the user's clients and tokens go,
// users it created lose their creator.
func (m *Memory) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return notFound("DeleteUser")
	}
	delete(m.users, id)
	for cid, c := range m.clients {
		if c.ResellerID == id {
			delete(m.clients, cid)
			delete(m.assignments, cid)
		}
	}
	for k, t := range m.regTokens {
		if t.CreatedByID == id {
			delete(m.regTokens, k)
		}
	}
	for uid, u := range m.users {
		if u.CreatedByID != nil && *u.CreatedByID == id {
			u.CreatedByID = nil
			m.users[uid] = u
		}
	}
	return nil
}

// --- registration tokens ---

func (m *Memory) CreateRegistrationToken(_ context.Context, t *models.RegistrationToken) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regTokens[t.Token]; ok {
		return 0, fmt.Errorf("CreateRegistrationToken: %w", store.ErrConflict)
	}
	if _, ok := m.users[t.CreatedByID]; !ok {
		return 0, fmt.Errorf("CreateRegistrationToken: %w", store.ErrInvalidReference)
	}
	cp := *t
	cp.ID = m.id()
	m.regTokens[cp.Token] = cp
	return cp.ID, nil
}

func (m *Memory) GetRegistrationToken(_ context.Context, token string) (*models.RegistrationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.regTokens[token]
	if !ok {
		return nil, notFound("GetRegistrationToken")
	}
	return &t, nil
}

func (m *Memory) RedeemRegistrationToken(_ context.Context, token string, u *models.User, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.regTokens[token]
	switch {
	case !ok:
		return 0, notFound("RedeemRegistrationToken")
	case t.UsedAt != nil:
		return 0, fmt.Errorf("RedeemRegistrationToken: %w", store.ErrTokenUsed)
	case !now.Before(t.ExpiresAt):
		return 0, fmt.Errorf("RedeemRegistrationToken: %w", store.ErrTokenExpired)
	}
	nu := *u
	nu.Role = t.Role
	creator := t.CreatedByID
	nu.CreatedByID = &creator
	id, err := m.createUser(&nu)
	if err != nil {
		return 0, fmt.Errorf("RedeemRegistrationToken: %w", err)
	}
	used := now
	t.UsedAt = &used
	m.regTokens[token] = t
	return id, nil
}

// --- settings ---

func (m *Memory) GetSettings(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) UpsertSettings(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.settings[k] = v
	}
	return nil
}
