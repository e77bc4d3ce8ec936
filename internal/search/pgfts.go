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

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks live pages in the organization with plainto_tsquery over the
// generated fts column, falling back to a prefix match for short queries.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.OrganizationID == "" {
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

	rows, err := p.db.QueryContext(context.Background(), `
		SELECT id, title, icon, organization_id, COALESCE(parent_id, ''),
			COUNT(*) OVER () AS total
		FROM pages
		WHERE organization_id = $1
			AND trashed_at IS NULL
			AND (fts @@ plainto_tsquery('english', $2) OR title ILIKE '%' || $2 || '%')
		ORDER BY ts_rank(fts, plainto_tsquery('english', $2)) DESC, updated_at DESC
		LIMIT $3 OFFSET $4
	`, q.OrganizationID, q.Text, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Icon, &r.OrganizationID, &r.ParentID, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every live page for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, icon, organization_id, COALESCE(parent_id, '')
		FROM pages
		WHERE trashed_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	pages := make([]PageRecord, 0)
	for rows.Next() {
		var rec PageRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Icon, &rec.OrganizationID, &rec.ParentID); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}
