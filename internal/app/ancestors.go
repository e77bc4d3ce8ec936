package app

import (
	"context"
	"database/sql"
	"errors"

	"lattice/api/internal/store"
)

// maxAncestorDepth bounds the upward walk. Move validation keeps the forest
// acyclic, so the cap only matters for corrupted data.
const maxAncestorDepth = 1024

// Ancestors returns the chain above the page, root first. A broken or
// trashed parent link ends the walk silently so breadcrumbs for a partially
// orphaned chain still render what exists.
func (s *Service) Ancestors(ctx context.Context, orgID, pageID string) ([]store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return nil, err
	}
	return s.ancestorsOf(ctx, orgID, page)
}

func (s *Service) ancestorsOf(ctx context.Context, orgID string, page store.Page) ([]store.Page, error) {
	var chain []store.Page
	parentID := page.ParentID
	for depth := 0; parentID != nil && depth < maxAncestorDepth; depth++ {
		parent, err := s.store.GetPage(ctx, orgID, *parentID)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !parent.Live() {
			break
		}
		chain = append([]store.Page{parent}, chain...)
		parentID = parent.ParentID
	}
	return chain, nil
}

// validateMove decides whether re-parenting page under newParentID is legal.
// nil is always a valid target (move to root). The new parent must not be
// the page itself, must be live in the same organization, and must not sit
// anywhere below the page being moved.
func (s *Service) validateMove(ctx context.Context, orgID string, page store.Page, newParentID *string) error {
	if newParentID == nil {
		return nil
	}
	if *newParentID == page.ID {
		return errInvalidParent("a page cannot be its own parent")
	}

	parent, err := s.store.GetPage(ctx, orgID, *newParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return errInvalidParent("parent page does not exist")
	}
	if err != nil {
		return err
	}
	if !parent.Live() {
		return errInvalidParent("parent page is in the trash")
	}

	// Unlike breadcrumbs, the cycle check follows parent links through
	// trashed pages too: a chain passing a trashed intermediate is still a
	// chain in storage.
	parentID := parent.ParentID
	for depth := 0; parentID != nil && depth < maxAncestorDepth; depth++ {
		if *parentID == page.ID {
			return errInvalidParent("parent is a descendant of the page being moved")
		}
		ancestor, err := s.store.GetPage(ctx, orgID, *parentID)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return err
		}
		parentID = ancestor.ParentID
	}
	return nil
}
