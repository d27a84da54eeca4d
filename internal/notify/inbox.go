package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"pickup-games/internal/storage"
)

var (
	// ErrNotFound indicates the notification does not exist for the recipient.
	ErrNotFound = errors.New("notification not found")
	// ErrRecipientRequired indicates a recipient user id is required.
	ErrRecipientRequired = errors.New("recipient user id is required")
	// ErrNotificationIDRequired indicates a notification id is required.
	ErrNotificationIDRequired = errors.New("notification id is required")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// InboxStore is the persistence boundary for reading a recipient's inbox.
type InboxStore interface {
	// ListNotifications returns up to limit notifications newest first. A
	// non-empty beforeID restricts results to entries older than it.
	ListNotifications(ctx context.Context, recipientUserID string, limit int, beforeID string) ([]Notification, error)
	CountUnread(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID, notificationID string, readAt time.Time) (Notification, error)
}

// Page is one slice of an inbox. NextBefore is empty on the last page.
type Page struct {
	Notifications []Notification `json:"notifications"`
	NextBefore    string         `json:"next_before,omitempty"`
}

// Inbox serves the recipient-facing notification reads.
type Inbox struct {
	store InboxStore
	clock func() time.Time
}

func NewInbox(store InboxStore, clock func() time.Time) *Inbox {
	if clock == nil {
		clock = time.Now
	}
	return &Inbox{store: store, clock: clock}
}

func (i *Inbox) List(ctx context.Context, recipientUserID string, limit int, beforeID string) (Page, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return Page{}, ErrRecipientRequired
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	items, err := i.store.ListNotifications(ctx, recipientUserID, limit, strings.TrimSpace(beforeID))
	if errors.Is(err, storage.ErrNotFound) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, err
	}
	page := Page{Notifications: items}
	if page.Notifications == nil {
		page.Notifications = []Notification{}
	}
	if len(items) == limit {
		page.NextBefore = items[len(items)-1].ID
	}
	return page, nil
}

func (i *Inbox) UnreadCount(ctx context.Context, recipientUserID string) (int, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, ErrRecipientRequired
	}
	return i.store.CountUnread(ctx, recipientUserID)
}

// MarkRead acknowledges one notification. Only its recipient may do so;
// marking an already read notification keeps the original read time.
func (i *Inbox) MarkRead(ctx context.Context, recipientUserID, notificationID string) (Notification, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientRequired
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return Notification{}, ErrNotificationIDRequired
	}
	n, err := i.store.MarkNotificationRead(ctx, recipientUserID, notificationID, i.clock().UTC())
	if errors.Is(err, storage.ErrNotFound) {
		return Notification{}, ErrNotFound
	}
	return n, err
}
