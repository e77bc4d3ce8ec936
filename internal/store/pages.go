package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const pageColumns = `id, organization_id, parent_id, position, title, icon, cover_url,
	is_public, COALESCE(public_slug, ''), trashed_at, created_by, updated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (Page, error) {
	var item Page
	err := row.Scan(
		&item.ID,
		&item.OrganizationID,
		&item.ParentID,
		&item.Position,
		&item.Title,
		&item.Icon,
		&item.CoverURL,
		&item.IsPublic,
		&item.PublicSlug,
		&item.TrashedAt,
		&item.CreatedBy,
		&item.UpdatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// GetPage returns the page regardless of trash state. Callers check
// TrashedAt themselves; sql.ErrNoRows passes through for missing pages.
func (s *PostgresStore) GetPage(ctx context.Context, orgID, pageID string) (Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE organization_id=$1 AND id=$2
	`, orgID, pageID)
	return scanPage(row)
}

// ListPages returns every live page in the organization, position order.
func (s *PostgresStore) ListPages(ctx context.Context, orgID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE organization_id=$1 AND trashed_at IS NULL
		ORDER BY position, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return collectPages(rows)
}

func (s *PostgresStore) ListTrashedPages(ctx context.Context, orgID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE organization_id=$1 AND trashed_at IS NOT NULL
		ORDER BY trashed_at DESC, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list trashed pages: %w", err)
	}
	return collectPages(rows)
}

// ListChildPages returns the live children of parentID (nil for roots),
// position order. Exact-position ties resolve by id; the allocator race on
// concurrent moves is accepted, never deduplicated here.
func (s *PostgresStore) ListChildPages(ctx context.Context, orgID string, parentID *string) ([]Page, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+pageColumns+`
			FROM pages
			WHERE organization_id=$1 AND parent_id IS NULL AND trashed_at IS NULL
			ORDER BY position, id
		`, orgID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+pageColumns+`
			FROM pages
			WHERE organization_id=$1 AND parent_id=$2 AND trashed_at IS NULL
			ORDER BY position, id
		`, orgID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	return collectPages(rows)
}

func collectPages(rows *sql.Rows) ([]Page, error) {
	defer rows.Close()
	items := make([]Page, 0)
	for rows.Next() {
		item, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertPage(ctx context.Context, item Page) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, organization_id, parent_id, position, title, icon, cover_url,
			is_public, public_slug, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, item.ID, item.OrganizationID, item.ParentID, item.Position, item.Title, item.Icon,
		item.CoverURL, item.IsPublic, nullIfEmpty(item.PublicSlug), item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// UpdatePageMeta writes the non-structural fields. Parent and position are
// only ever changed through MovePage, TrashPages and RestorePage.
func (s *PostgresStore) UpdatePageMeta(ctx context.Context, item Page) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages
		SET title=$3, icon=$4, cover_url=$5, is_public=$6, public_slug=$7, updated_by=$8, updated_at=NOW()
		WHERE organization_id=$1 AND id=$2
	`, item.OrganizationID, item.ID, item.Title, item.Icon, item.CoverURL,
		item.IsPublic, nullIfEmpty(item.PublicSlug), item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update page meta: %w", err)
	}
	return nil
}

// MovePage re-parents and positions a page. When shift is set, live siblings
// in the destination group at or above the target position move up by one
// first, inside the same transaction.
func (s *PostgresStore) MovePage(ctx context.Context, orgID, pageID string, parentID *string, position int, shift bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if shift {
		if parentID == nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE pages SET position = position + 1
				WHERE organization_id=$1 AND parent_id IS NULL AND trashed_at IS NULL AND position >= $2 AND id <> $3
			`, orgID, position, pageID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE pages SET position = position + 1
				WHERE organization_id=$1 AND parent_id=$2 AND trashed_at IS NULL AND position >= $3 AND id <> $4
			`, orgID, *parentID, position, pageID)
		}
		if err != nil {
			return fmt.Errorf("shift siblings: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pages SET parent_id=$3, position=$4, updated_at=NOW()
		WHERE organization_id=$1 AND id=$2
	`, orgID, pageID, parentID, position); err != nil {
		return fmt.Errorf("move page: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move tx: %w", err)
	}
	return nil
}

// TrashPages stamps trashed_at on every id in one transaction, so readers
// never observe a half-cascaded subtree.
func (s *PostgresStore) TrashPages(ctx context.Context, orgID string, pageIDs []string, trashedAt time.Time) error {
	if len(pageIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trash tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, 0, len(pageIDs))
	args := []any{orgID, trashedAt}
	for i, id := range pageIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE pages SET trashed_at=$2, updated_at=NOW()
		WHERE organization_id=$1 AND trashed_at IS NULL AND id IN (%s)
	`, strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("trash pages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trash tx: %w", err)
	}
	return nil
}

// RestorePage brings a single page back to life at the given parent and
// position. Descendants stay trashed until restored themselves.
func (s *PostgresStore) RestorePage(ctx context.Context, orgID, pageID string, parentID *string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages SET trashed_at=NULL, parent_id=$3, position=$4, updated_at=NOW()
		WHERE organization_id=$1 AND id=$2
	`, orgID, pageID, parentID, position)
	if err != nil {
		return fmt.Errorf("restore page: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePage(ctx context.Context, orgID, pageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE organization_id=$1 AND id=$2`, orgID, pageID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

// PublicSlugTaken reports whether any other page already holds the slug.
// Slugs are global across organizations and stay reserved while a page sits
// in the trash.
func (s *PostgresStore) PublicSlugTaken(ctx context.Context, slug, excludePageID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM pages WHERE public_slug=$1 AND id <> $2)
	`, slug, excludePageID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check public slug: %w", err)
	}
	return taken, nil
}

// GetPageBySlug resolves a live public page for anonymous share links.
func (s *PostgresStore) GetPageBySlug(ctx context.Context, slug string) (Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE public_slug=$1 AND is_public AND trashed_at IS NULL
	`, slug)
	return scanPage(row)
}

// NormalizeSiblingPositions renumbers one live sibling group densely from
// zero. Maintenance helper only; mutations never compact on their own.
func (s *PostgresStore) NormalizeSiblingPositions(ctx context.Context, orgID string, parentID *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin normalize tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rows *sql.Rows
	if parentID == nil {
		rows, err = tx.QueryContext(ctx, `
			SELECT id FROM pages
			WHERE organization_id=$1 AND parent_id IS NULL AND trashed_at IS NULL
			ORDER BY position, id
		`, orgID)
	} else {
		rows, err = tx.QueryContext(ctx, `
			SELECT id FROM pages
			WHERE organization_id=$1 AND parent_id=$2 AND trashed_at IS NULL
			ORDER BY position, id
		`, orgID, *parentID)
	}
	if err != nil {
		return fmt.Errorf("list sibling ids: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan sibling id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate sibling ids: %w", err)
	}
	rows.Close()

	for index, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pages SET position=$3 WHERE organization_id=$1 AND id=$2
		`, orgID, id, index); err != nil {
			return fmt.Errorf("renumber sibling %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit normalize tx: %w", err)
	}
	return nil
}

// PageCounts returns live and trashed page counts for one organization.
func (s *PostgresStore) PageCounts(ctx context.Context, orgID string) (int, int, error) {
	var live, trashed int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE trashed_at IS NULL),
			COUNT(*) FILTER (WHERE trashed_at IS NOT NULL)
		FROM pages WHERE organization_id=$1
	`, orgID).Scan(&live, &trashed)
	if err != nil {
		return 0, 0, fmt.Errorf("page counts: %w", err)
	}
	return live, trashed, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
