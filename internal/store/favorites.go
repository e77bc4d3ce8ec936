package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrFavoriteMissing signals a reorder batch naming a favorite the user does
// not own; the batch is rolled back as a unit.
var ErrFavoriteMissing = errors.New("favorite not owned by user")

const favoriteColumns = `id, user_id, page_id, position, created_at`

func scanFavorite(row rowScanner) (Favorite, error) {
	var item Favorite
	err := row.Scan(&item.ID, &item.UserID, &item.PageID, &item.Position, &item.CreatedAt)
	return item, err
}

// GetFavorite looks up the unique (user, page) favorite; sql.ErrNoRows when
// absent.
func (s *PostgresStore) GetFavorite(ctx context.Context, userID, pageID string) (Favorite, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+favoriteColumns+`
		FROM favorites
		WHERE user_id=$1 AND page_id=$2
	`, userID, pageID)
	return scanFavorite(row)
}

// ListFavorites returns every favorite of the user in position order,
// regardless of the referenced page's state. Callers filter to live
// in-organization pages.
func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+favoriteColumns+`
		FROM favorites
		WHERE user_id=$1
		ORDER BY position, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	items := make([]Favorite, 0)
	for rows.Next() {
		item, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertFavorite(ctx context.Context, item Favorite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (id, user_id, page_id, position)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.UserID, item.PageID, item.Position)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteFavorite(ctx context.Context, userID, pageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id=$1 AND page_id=$2`, userID, pageID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// ReorderFavorites assigns position = index for each favorite id, in one
// transaction. If any id does not belong to the user the whole batch rolls
// back and every position is left untouched.
func (s *PostgresStore) ReorderFavorites(ctx context.Context, userID string, orderedIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for index, favoriteID := range orderedIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE favorites SET position=$3 WHERE user_id=$1 AND id=$2
		`, userID, favoriteID, index)
		if err != nil {
			return fmt.Errorf("reorder favorite %s: %w", favoriteID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reorder favorite %s: %w", favoriteID, err)
		}
		if affected == 0 {
			return fmt.Errorf("reorder favorite %s: %w", favoriteID, ErrFavoriteMissing)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}

// FavoriteCount returns the number of favorites held by the user.
func (s *PostgresStore) FavoriteCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id=$1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("favorite count: %w", err)
	}
	return count, nil
}
