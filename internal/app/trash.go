package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"lattice/api/internal/notify"
	"lattice/api/internal/store"
)

// TrashPage moves the page and every live descendant into the trash as one
// atomic cascade. The descendant set is a snapshot taken at call time: pages
// attached under the subtree afterwards are unaffected. Returns the ids that
// were trashed, the page itself first.
func (s *Service) TrashPage(ctx context.Context, orgID, pageID, actorID string) ([]string, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return nil, err
	}
	if !page.Live() {
		return nil, errPageAlreadyInTrash(pageID)
	}

	ids, err := s.collectSubtreeIDs(ctx, orgID, pageID)
	if err != nil {
		return nil, err
	}
	if err := s.store.TrashPages(ctx, orgID, ids, time.Now()); err != nil {
		return nil, err
	}

	for _, id := range ids {
		s.searchDelete(id)
	}
	s.pageEvent(ctx, notify.KindPageTrashed, orgID, pageID, actorID,
		fmt.Sprintf("%q was moved to trash", page.Title))
	return ids, nil
}

// collectSubtreeIDs gathers pageID plus every live descendant via a worklist
// walk over direct-child lookups. Explicit stack rather than recursion so
// depth is bounded by memory, not goroutine stack.
func (s *Service) collectSubtreeIDs(ctx context.Context, orgID, pageID string) ([]string, error) {
	ids := []string{pageID}
	stack := []string{pageID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.store.ListChildPages(ctx, orgID, &current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			ids = append(ids, child.ID)
			stack = append(stack, child.ID)
		}
	}
	return ids, nil
}

// RestorePage brings a trashed page back. If its recorded parent is still
// live the page returns under it, appended after the live siblings; if the
// parent is missing or trashed the page is re-homed to the root level.
// Descendants trashed by the same cascade stay trashed and need their own
// restore calls.
func (s *Service) RestorePage(ctx context.Context, orgID, pageID, actorID string) (store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if page.Live() {
		return store.Page{}, errPageNotInTrash(pageID)
	}

	parentID := page.ParentID
	if parentID != nil {
		parent, err := s.store.GetPage(ctx, orgID, *parentID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			parentID = nil
		case err != nil:
			return store.Page{}, err
		case !parent.Live():
			parentID = nil
		}
	}

	siblings, err := s.store.ListChildPages(ctx, orgID, parentID)
	if err != nil {
		return store.Page{}, err
	}
	position := nextPosition(pagePositions(siblings))

	if err := s.store.RestorePage(ctx, orgID, pageID, parentID, position); err != nil {
		return store.Page{}, err
	}
	restored, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}

	s.searchIndex(restored)
	s.pageEvent(ctx, notify.KindPageRestored, orgID, pageID, actorID,
		fmt.Sprintf("%q was restored from trash", restored.Title))
	return restored, nil
}

// PermanentlyDeletePage removes a single trashed page for good. Descendants
// are not swept here; they are deleted individually from the trash view.
func (s *Service) PermanentlyDeletePage(ctx context.Context, orgID, pageID string) error {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return err
	}
	if page.Live() {
		return errPageNotInTrash(pageID)
	}

	if err := s.store.DeletePage(ctx, orgID, pageID); err != nil {
		return err
	}
	s.searchDelete(pageID)
	if s.covers != nil && page.CoverURL != "" {
		if err := s.covers.Remove(ctx, pageID); err != nil {
			log.Printf("covers: remove %s: %v", pageID, err)
		}
	}
	return nil
}
