// Package notify fans workspace events out to organization members as
// in-app notifications, with best-effort email when SMTP is configured.
package notify

import (
	"context"
	"log"

	"lattice/api/internal/store"
	"lattice/api/internal/util"
)

const (
	KindPageTrashed  = "page.trashed"
	KindPageRestored = "page.restored"
)

// Store is the storage surface fan-out needs.
type Store interface {
	ListMemberUserIDs(ctx context.Context, orgID string) ([]string, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	InsertNotification(ctx context.Context, item store.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

type Service struct {
	store  Store
	mailer *Mailer
}

// NewService creates a notification service. mailer may be nil; in-app rows
// are always written, email is skipped.
func NewService(store Store, mailer *Mailer) *Service {
	return &Service{store: store, mailer: mailer}
}

// PageEvent records a notification for every organization member except the
// actor. Row insertion is synchronous; email delivery is fire-and-forget.
func (s *Service) PageEvent(ctx context.Context, kind string, orgID, pageID, actorID, message string) error {
	memberIDs, err := s.store.ListMemberUserIDs(ctx, orgID)
	if err != nil {
		return err
	}

	var recipients []string
	for _, memberID := range memberIDs {
		if memberID == actorID {
			continue
		}
		if err := s.store.InsertNotification(ctx, store.Notification{
			ID:             util.NewID("ntf"),
			UserID:         memberID,
			OrganizationID: orgID,
			PageID:         pageID,
			ActorID:        actorID,
			Kind:           kind,
			Message:        message,
		}); err != nil {
			return err
		}
		recipients = append(recipients, memberID)
	}

	if s.mailer != nil && s.mailer.IsConfigured() && len(recipients) > 0 {
		go s.emailMembers(recipients, message)
	}
	return nil
}

func (s *Service) emailMembers(userIDs []string, message string) {
	ctx := context.Background()
	for _, userID := range userIDs {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil || user.Email == "" {
			continue
		}
		if err := s.mailer.SendEmail([]string{user.Email}, "Lattice update", message); err != nil {
			log.Printf("notify: email %s: %v", user.Email, err)
		}
	}
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkNotificationRead(ctx, userID, notificationID)
}
