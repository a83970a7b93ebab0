package repository

import (
	"context"
	"database/sql"

	"sharedlist-sync-server/internal/domain"
)

type ListRepository interface {
	// Create stores list and fills CreatedAt. A duplicate id is domain.ErrConflict.
	Create(ctx context.Context, list *domain.List) error
	FindByID(ctx context.Context, id string) (*domain.List, error)
	// Delete reports whether a list was removed. Items and subscriptions of
	// the list go with it.
	Delete(ctx context.Context, id string) (bool, error)
}

type ItemRepository interface {
	// Create inserts item under item.ListID and fills the storage-assigned
	// fields. It fails with domain.ErrCapacityExceeded when the list already
	// holds maxLive live items.
	Create(ctx context.Context, item *domain.Item, maxLive int) error
	// Update replaces ciphertext and nonce of (item.ListID, item.ID) and
	// assigns a new rev. The deleted flag is left untouched.
	Update(ctx context.Context, item *domain.Item) error
	SoftDelete(ctx context.Context, listID string, itemID int64, updatedBy string) (int64, error)
	// ListItems returns a snapshot of live items when sinceRev is nil, or
	// every item with rev > *sinceRev otherwise.
	ListItems(ctx context.Context, listID string, sinceRev *int64) (*domain.ItemPage, error)
}

type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *domain.PushSubscription) error
	Delete(ctx context.Context, listID, clientFingerprint, deviceToken string) error
	TokensForList(ctx context.Context, listID string) ([]string, error)
}

type StatsRepository interface {
	Usage(ctx context.Context) (*domain.UsageStats, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Repositories groups the stores backing one deployment.
type Repositories struct {
	Lists         ListRepository
	Items         ItemRepository
	Subscriptions SubscriptionRepository
	Stats         StatsRepository
	Health        HealthChecker
}

func NewPostgresRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Lists:         NewListRepository(db),
		Items:         NewItemRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Stats:         NewStatsRepository(db),
		Health:        dbHealth{db: db},
	}
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
