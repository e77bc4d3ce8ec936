package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"

	"lattice/api/internal/store"
	"lattice/api/internal/util"
)

type CreatePageInput struct {
	Title    string  `json:"title"`
	ParentID *string `json:"parentId"`
	Icon     string  `json:"icon"`
}

type UpdatePageInput struct {
	Title      *string `json:"title"`
	Icon       *string `json:"icon"`
	IsPublic   *bool   `json:"isPublic"`
	PublicSlug *string `json:"publicSlug"`
}

type MovePageInput struct {
	ParentID *string `json:"parentId"`
	Position *int    `json:"position"`
}

// getPage resolves a page within the organization, mapping a missing row to
// the domain error.
func (s *Service) getPage(ctx context.Context, orgID, pageID string) (store.Page, error) {
	page, err := s.store.GetPage(ctx, orgID, pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Page{}, errPageNotFound(pageID)
	}
	if err != nil {
		return store.Page{}, err
	}
	return page, nil
}

// CreatePage appends a new page at the end of its sibling group. A given
// parent must resolve to a live page in the organization.
func (s *Service) CreatePage(ctx context.Context, orgID, actorID string, input CreatePageInput) (store.Page, error) {
	if input.ParentID != nil {
		parent, err := s.store.GetPage(ctx, orgID, *input.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Page{}, errInvalidParent("parent page does not exist")
		}
		if err != nil {
			return store.Page{}, err
		}
		if !parent.Live() {
			return store.Page{}, errInvalidParent("parent page is in the trash")
		}
	}

	siblings, err := s.store.ListChildPages(ctx, orgID, input.ParentID)
	if err != nil {
		return store.Page{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Untitled"
	}

	page := store.Page{
		ID:             util.NewID("pg"),
		OrganizationID: orgID,
		ParentID:       input.ParentID,
		Position:       nextPosition(pagePositions(siblings)),
		Title:          title,
		Icon:           input.Icon,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
	}
	if err := s.store.InsertPage(ctx, page); err != nil {
		return store.Page{}, err
	}

	created, err := s.getPage(ctx, orgID, page.ID)
	if err != nil {
		return store.Page{}, err
	}
	s.searchIndex(created)
	return created, nil
}

// UpdatePage changes non-structural fields. Trashed pages reject all writes.
// Setting a public slug checks uniqueness across every organization, since
// share links live in a single namespace.
func (s *Service) UpdatePage(ctx context.Context, orgID, pageID, actorID string, input UpdatePageInput) (store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if !page.Live() {
		return store.Page{}, errPageInTrash(pageID)
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			title = "Untitled"
		}
		page.Title = title
	}
	if input.Icon != nil {
		page.Icon = *input.Icon
	}
	if input.IsPublic != nil {
		page.IsPublic = *input.IsPublic
	}
	if input.PublicSlug != nil {
		slug := strings.TrimSpace(*input.PublicSlug)
		if slug != "" && slug != page.PublicSlug {
			taken, err := s.store.PublicSlugTaken(ctx, slug, pageID)
			if err != nil {
				return store.Page{}, err
			}
			if taken {
				return store.Page{}, errSlugExists(slug)
			}
		}
		page.PublicSlug = slug
	}
	page.UpdatedBy = actorID

	if err := s.store.UpdatePageMeta(ctx, page); err != nil {
		return store.Page{}, err
	}
	updated, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	s.searchIndex(updated)
	return updated, nil
}

// MovePage re-parents and/or repositions a page. With an explicit position,
// live destination siblings at or past the slot shift up by one inside the
// same transaction. Without one, a parent change appends at the end of the
// new group. Positions left behind in the old group are not compacted; they
// are ordering keys and gaps are harmless.
func (s *Service) MovePage(ctx context.Context, orgID, pageID, actorID string, input MovePageInput) (store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if !page.Live() {
		return store.Page{}, errPageInTrash(pageID)
	}

	parentChanged := !sameParent(page.ParentID, input.ParentID)
	if parentChanged {
		if err := s.validateMove(ctx, orgID, page, input.ParentID); err != nil {
			return store.Page{}, err
		}
	}

	var position int
	shift := false
	switch {
	case input.Position != nil:
		position = *input.Position
		if position < 0 {
			position = 0
		}
		shift = true
	case parentChanged:
		siblings, err := s.store.ListChildPages(ctx, orgID, input.ParentID)
		if err != nil {
			return store.Page{}, err
		}
		position = nextPosition(pagePositions(siblings))
	default:
		// No parent change and no explicit position: nothing to move.
		return page, nil
	}

	if err := s.store.MovePage(ctx, orgID, pageID, input.ParentID, position, shift); err != nil {
		return store.Page{}, err
	}
	moved, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	s.searchIndex(moved)
	return moved, nil
}

// DuplicatePage clones title, icon and cover into a fresh page appended to
// the same sibling group. Descendants are not copied, and neither is the
// public slug, which must stay unique.
func (s *Service) DuplicatePage(ctx context.Context, orgID, pageID, actorID string) (store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if !page.Live() {
		return store.Page{}, errPageInTrash(pageID)
	}

	siblings, err := s.store.ListChildPages(ctx, orgID, page.ParentID)
	if err != nil {
		return store.Page{}, err
	}

	copyPage := store.Page{
		ID:             util.NewID("pg"),
		OrganizationID: orgID,
		ParentID:       page.ParentID,
		Position:       nextPosition(pagePositions(siblings)),
		Title:          page.Title + " (copy)",
		Icon:           page.Icon,
		CoverURL:       page.CoverURL,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
	}
	if err := s.store.InsertPage(ctx, copyPage); err != nil {
		return store.Page{}, err
	}

	created, err := s.getPage(ctx, orgID, copyPage.ID)
	if err != nil {
		return store.Page{}, err
	}
	s.searchIndex(created)
	return created, nil
}

func (s *Service) GetPage(ctx context.Context, orgID, pageID string) (store.Page, error) {
	return s.getPage(ctx, orgID, pageID)
}

// PageTree returns the organization's live pages as a forest.
func (s *Service) PageTree(ctx context.Context, orgID string) ([]*PageNode, error) {
	pages, err := s.store.ListPages(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return BuildPageTree(pages), nil
}

func (s *Service) ListPages(ctx context.Context, orgID string) ([]store.Page, error) {
	return s.store.ListPages(ctx, orgID)
}

func (s *Service) ListTrashedPages(ctx context.Context, orgID string) ([]store.Page, error) {
	return s.store.ListTrashedPages(ctx, orgID)
}

// PublicPage resolves a share slug to a live public page. Share links are
// global, not organization scoped.
func (s *Service) PublicPage(ctx context.Context, slug string) (store.Page, error) {
	page, err := s.store.GetPageBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Page{}, errPageNotFound(slug)
	}
	if err != nil {
		return store.Page{}, err
	}
	return page, nil
}

// NormalizePositions renumbers one sibling group 0..n-1 in current order.
// Maintenance helper for groups that accumulated large gaps.
func (s *Service) NormalizePositions(ctx context.Context, orgID string, parentID *string) error {
	return s.store.NormalizeSiblingPositions(ctx, orgID, parentID)
}

// SetPageCover uploads a cover image and records its URL on the page.
func (s *Service) SetPageCover(ctx context.Context, orgID, pageID, actorID, contentType string, body io.Reader, size int64) (store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if !page.Live() {
		return store.Page{}, errPageInTrash(pageID)
	}
	if s.covers == nil {
		return store.Page{}, domainError(http.StatusServiceUnavailable, "COVERS_UNAVAILABLE", "Cover storage not configured", nil)
	}

	url, err := s.covers.Upload(ctx, pageID, contentType, body, size)
	if err != nil {
		return store.Page{}, err
	}
	page.CoverURL = url
	page.UpdatedBy = actorID
	if err := s.store.UpdatePageMeta(ctx, page); err != nil {
		return store.Page{}, err
	}
	return s.getPage(ctx, orgID, pageID)
}

// RemovePageCover deletes the stored image and clears the URL.
func (s *Service) RemovePageCover(ctx context.Context, orgID, pageID, actorID string) (store.Page, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if !page.Live() {
		return store.Page{}, errPageInTrash(pageID)
	}
	if s.covers != nil && page.CoverURL != "" {
		if err := s.covers.Remove(ctx, pageID); err != nil {
			return store.Page{}, err
		}
	}
	page.CoverURL = ""
	page.UpdatedBy = actorID
	if err := s.store.UpdatePageMeta(ctx, page); err != nil {
		return store.Page{}, err
	}
	return s.getPage(ctx, orgID, pageID)
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
