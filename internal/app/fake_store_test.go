package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"lattice/api/internal/config"
	"lattice/api/internal/store"
)

// fakeStore is an in-memory dataStore mirroring the Postgres semantics the
// service relies on: org scoping, live filtering, position shifting.
type fakeStore struct {
	pages         map[string]store.Page
	favorites     map[string]store.Favorite
	users         map[string]store.User
	orgs          map[string]store.Organization
	memberships   []store.Membership
	notifications []store.Notification
	revokedJTIs   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages:       make(map[string]store.Page),
		favorites:   make(map[string]store.Favorite),
		users:       make(map[string]store.User),
		orgs:        make(map[string]store.Organization),
		revokedJTIs: make(map[string]bool),
	}
}

func (f *fakeStore) GetPage(_ context.Context, orgID, pageID string) (store.Page, error) {
	page, ok := f.pages[pageID]
	if !ok || page.OrganizationID != orgID {
		return store.Page{}, sql.ErrNoRows
	}
	return page, nil
}

func (f *fakeStore) ListPages(_ context.Context, orgID string) ([]store.Page, error) {
	var out []store.Page
	for _, p := range f.pages {
		if p.OrganizationID == orgID && p.Live() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) ListTrashedPages(_ context.Context, orgID string) ([]store.Page, error) {
	var out []store.Page
	for _, p := range f.pages {
		if p.OrganizationID == orgID && !p.Live() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListChildPages(_ context.Context, orgID string, parentID *string) ([]store.Page, error) {
	var out []store.Page
	for _, p := range f.pages {
		if p.OrganizationID == orgID && p.Live() && sameParent(p.ParentID, parentID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) InsertPage(_ context.Context, item store.Page) error {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	f.pages[item.ID] = item
	return nil
}

func (f *fakeStore) UpdatePageMeta(_ context.Context, item store.Page) error {
	current, ok := f.pages[item.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current.Title = item.Title
	current.Icon = item.Icon
	current.CoverURL = item.CoverURL
	current.IsPublic = item.IsPublic
	current.PublicSlug = item.PublicSlug
	current.UpdatedBy = item.UpdatedBy
	current.UpdatedAt = time.Now()
	f.pages[item.ID] = current
	return nil
}

func (f *fakeStore) MovePage(_ context.Context, orgID, pageID string, parentID *string, position int, shift bool) error {
	page, ok := f.pages[pageID]
	if !ok || page.OrganizationID != orgID {
		return sql.ErrNoRows
	}
	if shift {
		for id, sibling := range f.pages {
			if id == pageID || sibling.OrganizationID != orgID || !sibling.Live() {
				continue
			}
			if sameParent(sibling.ParentID, parentID) && sibling.Position >= position {
				sibling.Position++
				f.pages[id] = sibling
			}
		}
	}
	page.ParentID = parentID
	page.Position = position
	page.UpdatedAt = time.Now()
	f.pages[pageID] = page
	return nil
}

func (f *fakeStore) TrashPages(_ context.Context, orgID string, pageIDs []string, trashedAt time.Time) error {
	for _, id := range pageIDs {
		page, ok := f.pages[id]
		if !ok || page.OrganizationID != orgID || !page.Live() {
			continue
		}
		at := trashedAt
		page.TrashedAt = &at
		f.pages[id] = page
	}
	return nil
}

func (f *fakeStore) RestorePage(_ context.Context, orgID, pageID string, parentID *string, position int) error {
	page, ok := f.pages[pageID]
	if !ok || page.OrganizationID != orgID {
		return sql.ErrNoRows
	}
	page.TrashedAt = nil
	page.ParentID = parentID
	page.Position = position
	f.pages[pageID] = page
	return nil
}

func (f *fakeStore) DeletePage(_ context.Context, orgID, pageID string) error {
	page, ok := f.pages[pageID]
	if !ok || page.OrganizationID != orgID {
		return sql.ErrNoRows
	}
	delete(f.pages, pageID)
	return nil
}

func (f *fakeStore) PublicSlugTaken(_ context.Context, slug, excludePageID string) (bool, error) {
	for id, page := range f.pages {
		if id != excludePageID && page.PublicSlug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetPageBySlug(_ context.Context, slug string) (store.Page, error) {
	for _, page := range f.pages {
		if page.PublicSlug == slug && page.IsPublic && page.Live() {
			return page, nil
		}
	}
	return store.Page{}, sql.ErrNoRows
}

func (f *fakeStore) NormalizeSiblingPositions(ctx context.Context, orgID string, parentID *string) error {
	siblings, _ := f.ListChildPages(ctx, orgID, parentID)
	for i, sibling := range siblings {
		sibling.Position = i
		f.pages[sibling.ID] = sibling
	}
	return nil
}

func (f *fakeStore) PageCounts(_ context.Context, orgID string) (int, int, error) {
	live, trashed := 0, 0
	for _, page := range f.pages {
		if page.OrganizationID != orgID {
			continue
		}
		if page.Live() {
			live++
		} else {
			trashed++
		}
	}
	return live, trashed, nil
}

func (f *fakeStore) GetFavorite(_ context.Context, userID, pageID string) (store.Favorite, error) {
	for _, favorite := range f.favorites {
		if favorite.UserID == userID && favorite.PageID == pageID {
			return favorite, nil
		}
	}
	return store.Favorite{}, sql.ErrNoRows
}

func (f *fakeStore) ListFavorites(_ context.Context, userID string) ([]store.Favorite, error) {
	var out []store.Favorite
	for _, favorite := range f.favorites {
		if favorite.UserID == userID {
			out = append(out, favorite)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) InsertFavorite(_ context.Context, item store.Favorite) error {
	item.CreatedAt = time.Now()
	f.favorites[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteFavorite(_ context.Context, userID, pageID string) error {
	for id, favorite := range f.favorites {
		if favorite.UserID == userID && favorite.PageID == pageID {
			delete(f.favorites, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) ReorderFavorites(_ context.Context, userID string, orderedIDs []string) error {
	// All or nothing: verify ownership of every id before touching any.
	for _, id := range orderedIDs {
		favorite, ok := f.favorites[id]
		if !ok || favorite.UserID != userID {
			return fmt.Errorf("reorder favorite %s: %w", id, store.ErrFavoriteMissing)
		}
	}
	for index, id := range orderedIDs {
		favorite := f.favorites[id]
		favorite.Position = index
		f.favorites[id] = favorite
	}
	return nil
}

func (f *fakeStore) FavoriteCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, favorite := range f.favorites {
		if favorite.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetOrganization(_ context.Context, orgID string) (store.Organization, error) {
	org, ok := f.orgs[orgID]
	if !ok {
		return store.Organization{}, sql.ErrNoRows
	}
	return org, nil
}

func (f *fakeStore) InsertOrganization(_ context.Context, org store.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeStore) ListOrganizationsForUser(_ context.Context, userID string) ([]store.Organization, error) {
	var out []store.Organization
	for _, membership := range f.memberships {
		if membership.UserID == userID {
			if org, ok := f.orgs[membership.OrganizationID]; ok {
				out = append(out, org)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMembership(_ context.Context, membership store.Membership) error {
	f.memberships = append(f.memberships, membership)
	return nil
}

func (f *fakeStore) GetMembershipRole(_ context.Context, orgID, userID string) (string, error) {
	for _, membership := range f.memberships {
		if membership.OrganizationID == orgID && membership.UserID == userID {
			return membership.Role, nil
		}
	}
	return "", nil
}

func (f *fakeStore) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	var out []store.Notification
	for _, item := range f.notifications {
		if item.UserID != userID {
			continue
		}
		if unreadOnly && item.ReadAt != nil {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	for i, item := range f.notifications {
		if item.ID == notificationID && item.UserID == userID {
			now := time.Now()
			f.notifications[i].ReadAt = &now
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.revokedJTIs[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	return f.revokedJTIs[jti], nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeSessions struct {
	tokens map[string]string // hash -> userID
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: make(map[string]string)}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.tokens[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshUserID(_ context.Context, tokenHash string) (string, error) {
	userID, ok := f.tokens[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

func newTestService(fake *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fake,
		sessions: newFakeSessions(),
	}
}

func strptr(s string) *string { return &s }

func addPage(fake *fakeStore, id, orgID string, parentID *string, position int, title string) store.Page {
	page := store.Page{
		ID:             id,
		OrganizationID: orgID,
		ParentID:       parentID,
		Position:       position,
		Title:          title,
		CreatedBy:      "usr_test",
		UpdatedBy:      "usr_test",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	fake.pages[id] = page
	return page
}

func trashPage(fake *fakeStore, id string) {
	page := fake.pages[id]
	now := time.Now()
	page.TrashedAt = &now
	fake.pages[id] = page
}
