package app

import (
	"context"
	"database/sql"
	"errors"

	"lattice/api/internal/store"
	"lattice/api/internal/util"
)

// FavoriteItem pairs a favorite with the page it points at.
type FavoriteItem struct {
	Favorite store.Favorite
	Page     store.Page
}

// AddFavorite pins a live in-org page for the user, appended at the end of
// their list. One favorite per (user, page).
func (s *Service) AddFavorite(ctx context.Context, userID, orgID, pageID string) (store.Favorite, error) {
	page, err := s.store.GetPage(ctx, orgID, pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Favorite{}, errPageNotFound(pageID)
	}
	if err != nil {
		return store.Favorite{}, err
	}
	if !page.Live() {
		return store.Favorite{}, errPageNotFound(pageID)
	}

	if _, err := s.store.GetFavorite(ctx, userID, pageID); err == nil {
		return store.Favorite{}, errFavoriteExists(pageID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Favorite{}, err
	}

	existing, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return store.Favorite{}, err
	}

	favorite := store.Favorite{
		ID:       util.NewID("fav"),
		UserID:   userID,
		PageID:   pageID,
		Position: nextPosition(favoritePositions(existing)),
	}
	if err := s.store.InsertFavorite(ctx, favorite); err != nil {
		return store.Favorite{}, err
	}
	return favorite, nil
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, pageID string) error {
	if _, err := s.store.GetFavorite(ctx, userID, pageID); errors.Is(err, sql.ErrNoRows) {
		return errFavoriteNotFound(pageID)
	} else if err != nil {
		return err
	}
	return s.store.DeleteFavorite(ctx, userID, pageID)
}

// ListFavorites returns the user's favorites in position order, restricted
// to pages that are live and inside the organization. Favorites pointing at
// trashed or foreign pages are kept in storage but hidden here.
func (s *Service) ListFavorites(ctx context.Context, orgID, userID string) ([]FavoriteItem, error) {
	favorites, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]FavoriteItem, 0, len(favorites))
	for _, favorite := range favorites {
		page, err := s.store.GetPage(ctx, orgID, favorite.PageID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !page.Live() {
			continue
		}
		items = append(items, FavoriteItem{Favorite: favorite, Page: page})
	}
	return items, nil
}

// ReorderFavorites assigns position = index for each favorite id in the
// given order, all or nothing. An id that does not belong to the user rolls
// the whole batch back.
func (s *Service) ReorderFavorites(ctx context.Context, userID string, orderedIDs []string) error {
	err := s.store.ReorderFavorites(ctx, userID, orderedIDs)
	if errors.Is(err, store.ErrFavoriteMissing) {
		return errFavoriteNotFound("")
	}
	return err
}
