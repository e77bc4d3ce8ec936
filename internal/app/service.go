package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"lattice/api/internal/auth"
	"lattice/api/internal/authpw"
	"lattice/api/internal/config"
	"lattice/api/internal/covers"
	"lattice/api/internal/export"
	"lattice/api/internal/notify"
	"lattice/api/internal/rbac"
	"lattice/api/internal/search"
	"lattice/api/internal/session"
	"lattice/api/internal/store"
	"lattice/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the storage surface the service depends on, satisfied by
// *store.PostgresStore and by fakes in tests.
type dataStore interface {
	// pages
	GetPage(ctx context.Context, orgID, pageID string) (store.Page, error)
	ListPages(ctx context.Context, orgID string) ([]store.Page, error)
	ListTrashedPages(ctx context.Context, orgID string) ([]store.Page, error)
	ListChildPages(ctx context.Context, orgID string, parentID *string) ([]store.Page, error)
	InsertPage(ctx context.Context, item store.Page) error
	UpdatePageMeta(ctx context.Context, item store.Page) error
	MovePage(ctx context.Context, orgID, pageID string, parentID *string, position int, shift bool) error
	TrashPages(ctx context.Context, orgID string, pageIDs []string, trashedAt time.Time) error
	RestorePage(ctx context.Context, orgID, pageID string, parentID *string, position int) error
	DeletePage(ctx context.Context, orgID, pageID string) error
	PublicSlugTaken(ctx context.Context, slug, excludePageID string) (bool, error)
	GetPageBySlug(ctx context.Context, slug string) (store.Page, error)
	NormalizeSiblingPositions(ctx context.Context, orgID string, parentID *string) error
	PageCounts(ctx context.Context, orgID string) (int, int, error)

	// favorites
	GetFavorite(ctx context.Context, userID, pageID string) (store.Favorite, error)
	ListFavorites(ctx context.Context, userID string) ([]store.Favorite, error)
	InsertFavorite(ctx context.Context, item store.Favorite) error
	DeleteFavorite(ctx context.Context, userID, pageID string) error
	ReorderFavorites(ctx context.Context, userID string, orderedIDs []string) error
	FavoriteCount(ctx context.Context, userID string) (int, error)

	// users and organizations
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetOrganization(ctx context.Context, orgID string) (store.Organization, error)
	InsertOrganization(ctx context.Context, org store.Organization) error
	ListOrganizationsForUser(ctx context.Context, userID string) ([]store.Organization, error)
	InsertMembership(ctx context.Context, membership store.Membership) error
	GetMembershipRole(ctx context.Context, orgID, userID string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)

	// notifications
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error

	// tokens
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	Ping(ctx context.Context) error
}

// refreshStore abstracts over the Redis-backed session store and the
// Postgres fallback, which index refresh tokens the same way but return
// different shapes.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshUserID(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type redisSessions struct {
	inner *session.RedisStore
}

func (r redisSessions) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return r.inner.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (r redisSessions) LookupRefreshUserID(ctx context.Context, tokenHash string) (string, error) {
	return r.inner.LookupRefreshSession(ctx, tokenHash)
}

func (r redisSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return r.inner.RevokeRefreshSession(ctx, tokenHash)
}

type pgSessions struct {
	inner *store.PostgresStore
}

func (p pgSessions) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return p.inner.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (p pgSessions) LookupRefreshUserID(ctx context.Context, tokenHash string) (string, error) {
	user, err := p.inner.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (p pgSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.inner.RevokeRefreshSession(ctx, tokenHash)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexPage(p search.PageRecord)
	DeletePage(id string)
}

type notifier interface {
	PageEvent(ctx context.Context, kind string, orgID, pageID, actorID, message string) error
}

type coverStore interface {
	Upload(ctx context.Context, pageID, contentType string, body io.Reader, size int64) (string, error)
	Remove(ctx context.Context, pageID string) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	authpw   *authpw.Service
	search   searchIndex
	notify   notifier
	covers   coverStore
	export   exporter
	mailer   *notify.Mailer
}

// Options carries the optional collaborators. Nil fields disable the
// corresponding feature rather than failing startup.
type Options struct {
	Sessions *session.RedisStore // nil: refresh sessions live in Postgres
	Search   *search.Service
	Notify   *notify.Service
	Covers   *covers.Service
	Mailer   *notify.Mailer
}

func New(cfg config.Config, pg *store.PostgresStore, opts Options) *Service {
	svc := &Service{
		cfg:    cfg,
		store:  pg,
		authpw: authpw.NewService(pg),
		mailer: opts.Mailer,
	}
	if opts.Sessions != nil {
		svc.sessions = redisSessions{inner: opts.Sessions}
	} else {
		svc.sessions = pgSessions{inner: pg}
	}
	if opts.Search != nil {
		svc.search = opts.Search
	}
	if opts.Notify != nil {
		svc.notify = opts.Notify
	}
	if opts.Covers != nil {
		svc.covers = opts.Covers
	}
	svc.export = export.NewService(exportStore{store: svc.store})
	return svc
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// SendVerificationEmail mails the signup verification link. Callers run it
// in a goroutine; delivery failures are logged, not surfaced.
func (s *Service) SendVerificationEmail(email, name, token string) error {
	url := strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/verify-email?token=" + token
	return s.mailer.SendVerificationEmail(email, name, url)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateSession issues an access/refresh token pair for a signed-in user and
// makes sure the user has at least one organization to land in.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := s.ensureDefaultOrganization(ctx, user); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshUserID(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Rotation: the presented token dies with its use.
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// RoleInOrg resolves the user's role inside an organization. Empty string
// means no membership.
func (s *Service) RoleInOrg(ctx context.Context, orgID, userID string) (rbac.Role, error) {
	role, err := s.store.GetMembershipRole(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", nil
	}
	return rbac.Normalize(role), nil
}

// ensureDefaultOrganization bootstraps a personal workspace for users who
// belong to nothing yet.
func (s *Service) ensureDefaultOrganization(ctx context.Context, user store.User) error {
	orgs, err := s.store.ListOrganizationsForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(orgs) > 0 {
		return nil
	}

	name := strings.TrimSpace(user.DisplayName)
	if name == "" {
		name = "Personal"
	}
	org := store.Organization{
		ID:        util.NewID("org"),
		Name:      name + "'s Workspace",
		Slug:      slugify(name) + "-" + util.NewID("")[:8],
		CreatedBy: user.ID,
	}
	if err := s.store.InsertOrganization(ctx, org); err != nil {
		return err
	}
	return s.store.InsertMembership(ctx, store.Membership{
		ID:             util.NewID("mem"),
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           string(rbac.RoleOwner),
	})
}

func (s *Service) ListOrganizations(ctx context.Context, userID string) ([]store.Organization, error) {
	return s.store.ListOrganizationsForUser(ctx, userID)
}

func (s *Service) CreateOrganization(ctx context.Context, userID, name string) (store.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Organization{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	org := store.Organization{
		ID:        util.NewID("org"),
		Name:      name,
		Slug:      slugify(name) + "-" + util.NewID("")[:8],
		CreatedBy: userID,
	}
	if err := s.store.InsertOrganization(ctx, org); err != nil {
		return store.Organization{}, err
	}
	if err := s.store.InsertMembership(ctx, store.Membership{
		ID:             util.NewID("mem"),
		OrganizationID: org.ID,
		UserID:         userID,
		Role:           string(rbac.RoleOwner),
	}); err != nil {
		return store.Organization{}, err
	}
	return org, nil
}

// OrganizationSummary returns the org record with live/trashed page counts.
func (s *Service) OrganizationSummary(ctx context.Context, orgID string) (store.Organization, int, int, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Organization{}, 0, 0, domainError(http.StatusNotFound, "ORG_NOT_FOUND", "Organization not found", nil)
	}
	if err != nil {
		return store.Organization{}, 0, 0, err
	}
	live, trashed, err := s.store.PageCounts(ctx, orgID)
	if err != nil {
		return store.Organization{}, 0, 0, err
	}
	return org, live, trashed, nil
}

// AddMember grants a role in the organization to the user behind the email.
func (s *Service) AddMember(ctx context.Context, orgID, email, role string) error {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return domainError(http.StatusNotFound, "USER_NOT_FOUND", "No account with that email", nil)
	}
	if err != nil {
		return err
	}
	return s.store.InsertMembership(ctx, store.Membership{
		ID:             util.NewID("mem"),
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           string(rbac.Normalize(role)),
	})
}

func (s *Service) FavoriteCount(ctx context.Context, userID string) (int, error) {
	return s.store.FavoriteCount(ctx, userID)
}

func (s *Service) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkNotificationRead(ctx, userID, notificationID)
}

// SearchPages queries the page index scoped to one organization.
func (s *Service) SearchPages(ctx context.Context, orgID, text string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:           text,
		OrganizationID: orgID,
		Limit:          limit,
		Offset:         offset,
	}), nil
}

// ExportPage renders the page outline in the requested format.
func (s *Service) ExportPage(ctx context.Context, orgID, pageID string, format export.Format) (*export.Result, error) {
	page, err := s.getPage(ctx, orgID, pageID)
	if err != nil {
		return nil, err
	}
	if !page.Live() {
		return nil, errPageInTrash(pageID)
	}
	return s.export.Export(ctx, export.Request{
		OrganizationID: orgID,
		PageID:         pageID,
		Format:         format,
	})
}

func (s *Service) searchIndex(page store.Page) {
	if s.search == nil || !page.Live() {
		return
	}
	record := search.PageRecord{
		ID:             page.ID,
		OrganizationID: page.OrganizationID,
		Title:          page.Title,
		Icon:           page.Icon,
	}
	if page.ParentID != nil {
		record.ParentID = *page.ParentID
	}
	s.search.IndexPage(record)
}

func (s *Service) searchDelete(pageID string) {
	if s.search == nil {
		return
	}
	s.search.DeletePage(pageID)
}

func (s *Service) pageEvent(ctx context.Context, kind, orgID, pageID, actorID, message string) {
	if s.notify == nil {
		return
	}
	if err := s.notify.PageEvent(ctx, kind, orgID, pageID, actorID, message); err != nil {
		// Fan-out failures never fail the page operation.
		log.Printf("notify: %s for %s: %v", kind, pageID, err)
	}
}

// exportStore adapts the service's data store to the exporter's read model.
type exportStore struct {
	store dataStore
}

func (e exportStore) GetPage(ctx context.Context, orgID, pageID string) (export.PageInfo, error) {
	page, err := e.store.GetPage(ctx, orgID, pageID)
	if err != nil {
		return export.PageInfo{}, err
	}
	return exportPageInfo(page), nil
}

func (e exportStore) ListPages(ctx context.Context, orgID string) ([]export.PageInfo, error) {
	pages, err := e.store.ListPages(ctx, orgID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.PageInfo, 0, len(pages))
	for _, page := range pages {
		infos = append(infos, exportPageInfo(page))
	}
	return infos, nil
}

func (e exportStore) GetUserName(ctx context.Context, userID string) (string, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.DisplayName, nil
}

func exportPageInfo(page store.Page) export.PageInfo {
	return export.PageInfo{
		ID:        page.ID,
		ParentID:  page.ParentID,
		Position:  page.Position,
		Title:     page.Title,
		Icon:      page.Icon,
		UpdatedBy: page.UpdatedBy,
		UpdatedAt: page.UpdatedAt,
	}
}

func slugify(input string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(input) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
