package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fastpanel/fastpanel/internal/models"
)

const playlistColumns = `id, name, COALESCE(url, ''), COALESCE(file_name, ''), priority, COALESCE(owner_id, 0), status, created_at`

func scanPlaylist(row pgx.Row) (*models.Playlist, error) {
	var pl models.Playlist
	if err := row.Scan(&pl.ID, &pl.Name, &pl.URL, &pl.FileName, &pl.Priority, &pl.OwnerID, &pl.Status, &pl.CreatedAt); err != nil {
		return nil, err
	}
	return &pl, nil
}

func (p *Postgres) queryPlaylists(ctx context.Context, op, sql string, args ...any) ([]models.Playlist, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, *pl)
	}
	return out, mapErr(op, rows.Err())
}

func (p *Postgres) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return p.queryPlaylists(ctx, "ListPlaylists",
		`SELECT `+playlistColumns+` FROM playlists ORDER BY priority DESC, id`)
}

func (p *Postgres) ListPlaylistsByStatus(ctx context.Context, statuses ...models.PlaylistStatus) ([]models.Playlist, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return p.queryPlaylists(ctx, "ListPlaylistsByStatus",
		`SELECT `+playlistColumns+` FROM playlists WHERE status = ANY($1) ORDER BY id`, names)
}

func (p *Postgres) GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	pl, err := scanPlaylist(p.pool.QueryRow(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id))
	return pl, mapErr("GetPlaylist", err)
}

func (p *Postgres) GetMasterPlaylist(ctx context.Context) (*models.Playlist, error) {
	pl, err := scanPlaylist(p.pool.QueryRow(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE name = $1`, models.MasterPlaylistName))
	return pl, mapErr("GetMasterPlaylist", err)
}

func (p *Postgres) EnsureMasterPlaylist(ctx context.Context, ownerID int64) (*models.Playlist, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO playlists (name, priority, owner_id, status)
		 VALUES ($1, 0, NULLIF($2, 0), $3)
		 ON CONFLICT (name) WHERE name = 'Master Client Playlist' DO NOTHING`,
		models.MasterPlaylistName, ownerID, models.StatusVerificando,
	)
	if err != nil {
		return nil, mapErr("EnsureMasterPlaylist", err)
	}
	return p.GetMasterPlaylist(ctx)
}

func (p *Postgres) CreatePlaylist(ctx context.Context, pl *models.Playlist) (int64, error) {
	status := pl.Status
	if status == "" {
		status = models.StatusVerificando
	}
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO playlists (name, url, file_name, priority, owner_id, status)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, 0), $6)
		 RETURNING id`,
		pl.Name, pl.URL, pl.FileName, pl.Priority, pl.OwnerID, status,
	).Scan(&id)
	if err != nil {
		return 0, mapErr("CreatePlaylist", err)
	}
	return id, nil
}

func (p *Postgres) SetPlaylistStatus(ctx context.Context, id int64, status models.PlaylistStatus) error {
	tag, err := p.pool.Exec(ctx, `UPDATE playlists SET status = $2 WHERE id = $1`, id, status)
	return expectOne("SetPlaylistStatus", tag, err)
}

// DeletePlaylist cascades to the playlist's stream rows.
func (p *Postgres) DeletePlaylist(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	return expectOne("DeletePlaylist", tag, err)
}

// --- master catalog streams ---

func (p *Postgres) ListStreams(ctx context.Context, playlistID int64) ([]models.Stream, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, playlist_id, name, stream_url, stream_type
		 FROM streams WHERE playlist_id = $1 ORDER BY id`, playlistID)
	if err != nil {
		return nil, mapErr("ListStreams", err)
	}
	defer rows.Close()

	var out []models.Stream
	for rows.Next() {
		var s models.Stream
		if err := rows.Scan(&s.ID, &s.PlaylistID, &s.Name, &s.StreamURL, &s.StreamType); err != nil {
			return nil, mapErr("ListStreams", err)
		}
		out = append(out, s)
	}
	return out, mapErr("ListStreams", rows.Err())
}

func (p *Postgres) ListStreamURLs(ctx context.Context, playlistID int64) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT stream_url FROM streams WHERE playlist_id = $1`, playlistID)
	if err != nil {
		return nil, mapErr("ListStreamURLs", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return urls, mapErr("ListStreamURLs", err)
}

// insertStreams batches one INSERT per entry; conflicting URLs are skipped.
func insertStreams(ctx context.Context, tx pgx.Tx, playlistID int64, entries []models.StreamEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		t := e.StreamType
		if !t.Valid() {
			t = models.StreamTypeCanal
		}
		batch.Queue(
			`INSERT INTO streams (playlist_id, name, stream_url, stream_type)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (playlist_id, stream_url) DO NOTHING`,
			playlistID, e.Name, e.URL, t,
		)
	}
	br := tx.SendBatch(ctx, batch)
	var inserted int64
	for range entries {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, br.Close()
}

func (p *Postgres) AddStreams(ctx context.Context, playlistID int64, entries []models.StreamEntry) (int64, error) {
	var inserted int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		n, err := insertStreams(ctx, tx, playlistID, entries)
		inserted = n
		return err
	})
	if err != nil {
		return 0, mapErr("AddStreams", err)
	}
	return inserted, nil
}

func (p *Postgres) ReplaceStreams(ctx context.Context, playlistID int64, entries []models.StreamEntry) (int64, error) {
	var inserted int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM streams WHERE playlist_id = $1`, playlistID); err != nil {
			return fmt.Errorf("delete streams: %w", err)
		}
		n, err := insertStreams(ctx, tx, playlistID, entries)
		inserted = n
		return err
	})
	if err != nil {
		return 0, mapErr("ReplaceStreams", err)
	}
	return inserted, nil
}

func (p *Postgres) UpdateStream(ctx context.Context, playlistID int64, s *models.Stream) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE streams SET name = $3, stream_url = $4, stream_type = $5
		 WHERE playlist_id = $1 AND id = $2`,
		playlistID, s.ID, s.Name, s.StreamURL, s.StreamType,
	)
	return expectOne("UpdateStream", tag, err)
}

func (p *Postgres) UpdateStreamType(ctx context.Context, playlistID, streamID int64, t models.StreamType) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE streams SET stream_type = $3 WHERE playlist_id = $1 AND id = $2`,
		playlistID, streamID, t,
	)
	return expectOne("UpdateStreamType", tag, err)
}

func (p *Postgres) DeleteStream(ctx context.Context, playlistID, streamID int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM streams WHERE playlist_id = $1 AND id = $2`, playlistID, streamID)
	return expectOne("DeleteStream", tag, err)
}

func (p *Postgres) CountStreamsByType(ctx context.Context, playlistID int64) (map[models.StreamType]int64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT stream_type, COUNT(*) FROM streams WHERE playlist_id = $1 GROUP BY stream_type`, playlistID)
	if err != nil {
		return nil, mapErr("CountStreamsByType", err)
	}
	defer rows.Close()

	counts := map[models.StreamType]int64{
		models.StreamTypeCanal: 0,
		models.StreamTypeFilme: 0,
		models.StreamTypeSerie: 0,
	}
	for rows.Next() {
		var t models.StreamType
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, mapErr("CountStreamsByType", err)
		}
		counts[t] = n
	}
	return counts, mapErr("CountStreamsByType", rows.Err())
}
