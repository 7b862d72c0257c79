package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastpanel/fastpanel/internal/models"
)

// --- source playlists ---

const sourceColumns = `id, name, type, file_path, stream_count, created_at`

func scanSource(row pgx.Row) (*models.SourcePlaylist, error) {
	var sp models.SourcePlaylist
	if err := row.Scan(&sp.ID, &sp.Name, &sp.Type, &sp.FilePath, &sp.StreamCount, &sp.CreatedAt); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (p *Postgres) ListSourcePlaylists(ctx context.Context) ([]models.SourcePlaylist, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+` FROM source_playlists ORDER BY name`)
	if err != nil {
		return nil, mapErr("ListSourcePlaylists", err)
	}
	defer rows.Close()

	var out []models.SourcePlaylist
	for rows.Next() {
		sp, err := scanSource(rows)
		if err != nil {
			return nil, mapErr("ListSourcePlaylists", err)
		}
		out = append(out, *sp)
	}
	return out, mapErr("ListSourcePlaylists", rows.Err())
}

func (p *Postgres) GetSourcePlaylist(ctx context.Context, id int64) (*models.SourcePlaylist, error) {
	sp, err := scanSource(p.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM source_playlists WHERE id = $1`, id))
	return sp, mapErr("GetSourcePlaylist", err)
}

func (p *Postgres) CreateSourcePlaylist(ctx context.Context, sp *models.SourcePlaylist) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO source_playlists (name, type, file_path, stream_count)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		sp.Name, sp.Type, sp.FilePath, sp.StreamCount,
	).Scan(&id)
	if err != nil {
		return 0, mapErr("CreateSourcePlaylist", err)
	}
	return id, nil
}

func (p *Postgres) UpdateSourceStreamCount(ctx context.Context, id int64, count int) error {
	tag, err := p.pool.Exec(ctx, `UPDATE source_playlists SET stream_count = $2 WHERE id = $1`, id, count)
	return expectOne("UpdateSourceStreamCount", tag, err)
}

func (p *Postgres) DeleteSourcePlaylist(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM source_playlists WHERE id = $1`, id)
	return expectOne("DeleteSourcePlaylist", tag, err)
}

// --- clients ---

const clientColumns = `id, username, password_hash, expiration_date, reseller_id, m3u_url, created_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.ExpirationDate, &c.ResellerID, &c.M3UURL, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) ListClients(ctx context.Context, resellerID *int64) ([]models.Client, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE $1::bigint IS NULL OR reseller_id = $1
		 ORDER BY created_at DESC, id DESC`, resellerID)
	if err != nil {
		return nil, mapErr("ListClients", err)
	}
	defer rows.Close()

	var out []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, mapErr("ListClients", err)
		}
		out = append(out, *c)
	}
	return out, mapErr("ListClients", rows.Err())
}

func (p *Postgres) CountClients(ctx context.Context, resellerID *int64) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM clients WHERE $1::bigint IS NULL OR reseller_id = $1`, resellerID).Scan(&n)
	return n, mapErr("CountClients", err)
}

func (p *Postgres) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	c, err := scanClient(p.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("GetClient", err)
	}
	if err := p.loadAssignments(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Postgres) GetClientByUsername(ctx context.Context, username string) (*models.Client, error) {
	c, err := scanClient(p.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE username = $1`, username))
	return c, mapErr("GetClientByUsername", err)
}

// loadAssignments fills c.SourcePlaylists in assignment order.
func (p *Postgres) loadAssignments(ctx context.Context, c *models.Client) error {
	rows, err := p.pool.Query(ctx,
		`SELECT sp.id, sp.name, sp.type, sp.file_path, sp.stream_count, sp.created_at
		 FROM client_source_playlists csp
		 JOIN source_playlists sp ON sp.id = csp.source_playlist_id
		 WHERE csp.client_id = $1
		 ORDER BY csp.position`, c.ID)
	if err != nil {
		return mapErr("loadAssignments", err)
	}
	defer rows.Close()

	c.SourcePlaylists = nil
	for rows.Next() {
		sp, err := scanSource(rows)
		if err != nil {
			return mapErr("loadAssignments", err)
		}
		c.SourcePlaylists = append(c.SourcePlaylists, *sp)
	}
	return mapErr("loadAssignments", rows.Err())
}

func (p *Postgres) CreateClient(ctx context.Context, c *models.Client, sourceIDs []int64) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO clients (username, password_hash, expiration_date, reseller_id)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			c.Username, c.PasswordHash, c.ExpirationDate, c.ResellerID,
		).Scan(&id)
		if err != nil {
			return err
		}
		for pos, sid := range sourceIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO client_source_playlists (client_id, source_playlist_id, position)
				 VALUES ($1, $2, $3)`, id, sid, pos); err != nil {
				return fmt.Errorf("assign source %d: %w", sid, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, mapErr("CreateClient", err)
	}
	return id, nil
}

func (p *Postgres) DeleteClient(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	return expectOne("DeleteClient", tag, err)
}

func (p *Postgres) UpdateClientPassword(ctx context.Context, id int64, hash string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE clients SET password_hash = $2 WHERE id = $1`, id, hash)
	return expectOne("UpdateClientPassword", tag, err)
}

func (p *Postgres) UpdateClientExpiration(ctx context.Context, id int64, expiration *time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE clients SET expiration_date = $2 WHERE id = $1`, id, expiration)
	return expectOne("UpdateClientExpiration", tag, err)
}

func (p *Postgres) SetClientM3UURL(ctx context.Context, id int64, url string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE clients SET m3u_url = $2 WHERE id = $1`, id, url)
	return expectOne("SetClientM3UURL", tag, err)
}

// --- settings ---

func (p *Postgres) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, mapErr("GetSettings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, mapErr("GetSettings", err)
		}
		out[k] = v
	}
	return out, mapErr("GetSettings", rows.Err())
}

func (p *Postgres) UpsertSettings(ctx context.Context, values map[string]string) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(ctx,
				`INSERT INTO settings (key, value) VALUES ($1, $2)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				k, v); err != nil {
				return fmt.Errorf("upsert %s: %w", k, err)
			}
		}
		return nil
	})
	return mapErr("UpsertSettings", err)
}
