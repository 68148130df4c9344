package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the songs table using plainto_tsquery with ts_rank ordering
// and ts_headline lyric snippets. The tsvector uses the 'simple' config so
// multilingual lyrics match verbatim.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "s.fts @@ plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	if q.FilterWorkspaceID != "" {
		where += fmt.Sprintf(" AND s.workspace_id = $%d", argN)
		args = append(args, q.FilterWorkspaceID)
		argN++
	}
	if q.FilterLanguage != "" {
		where += fmt.Sprintf(" AND s.language = $%d", argN)
		args = append(args, q.FilterLanguage)
		argN++
	}

	ctx := context.Background()

	countSQL := "SELECT count(*) FROM songs s WHERE " + where
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT s.id, s.title, s.author, s.song_key, s.language, s.workspace_id,
			ts_headline('simple', s.lyrics, plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM songs s
		WHERE %s
		ORDER BY ts_rank(s.fts, plainto_tsquery('simple', $1)) DESC, s.title
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Author, &r.Key, &r.Language, &r.WorkspaceID, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every song for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SongRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, author, lyrics, song_key, language, workspace_id
		FROM songs
	`)
	if err != nil {
		return nil, fmt.Errorf("load songs: %w", err)
	}
	defer rows.Close()

	songs := make([]SongRecord, 0)
	for rows.Next() {
		var s SongRecord
		if err := rows.Scan(&s.ID, &s.Title, &s.Author, &s.Lyrics, &s.Key, &s.Language, &s.WorkspaceID); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return songs, nil
}
