package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Organization struct {
	ID        string
	Name      string
	Slug      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Membership struct {
	ID             string
	OrganizationID string
	UserID         string
	Role           string
	CreatedAt      time.Time
}

// Page is one node of an organization's document tree. ParentID is nil for
// roots; Position orders siblings within one (organization, parent) group.
// TrashedAt nil means the page is live.
type Page struct {
	ID             string
	OrganizationID string
	ParentID       *string
	Position       int
	Title          string
	Icon           string
	CoverURL       string
	IsPublic       bool
	PublicSlug     string
	TrashedAt      *time.Time
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Live reports whether the page is not in the trash.
func (p Page) Live() bool {
	return p.TrashedAt == nil
}

// Favorite pins a page to one user's sidebar. Position is a per-user
// ordering key, independent of the page's own position.
type Favorite struct {
	ID        string
	UserID    string
	PageID    string
	Position  int
	CreatedAt time.Time
}

type Notification struct {
	ID             string
	UserID         string
	OrganizationID string
	PageID         string
	ActorID        string
	Kind           string
	Message        string
	ReadAt         *time.Time
	CreatedAt      time.Time
}
