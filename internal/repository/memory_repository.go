package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sharedlist-sync-server/internal/domain"
)

// memoryStore backs every in-memory repository with one mutex, which gives
// the same ordering guarantees as the list row lock in Postgres.
type memoryStore struct {
	mu      sync.Mutex
	lists   map[string]*domain.List
	items   map[int64]*domain.Item
	subs    map[subscriptionKey]*domain.PushSubscription
	nextID  int64
	nextRev int64
	now     func() time.Time
}

type subscriptionKey struct {
	listID, client, token string
}

// NewMemoryRepositories returns process-local repositories for development
// and tests. Data is lost on restart.
func NewMemoryRepositories() *Repositories {
	s := &memoryStore{
		lists: make(map[string]*domain.List),
		items: make(map[int64]*domain.Item),
		subs:  make(map[subscriptionKey]*domain.PushSubscription),
		now:   func() time.Time { return time.Now().UTC() },
	}
	return &Repositories{
		Lists:         &memoryListRepository{s},
		Items:         &memoryItemRepository{s},
		Subscriptions: &memorySubscriptionRepository{s},
		Stats:         &memoryStatsRepository{s},
		Health:        &memoryHealth{},
	}
}

type memoryListRepository struct{ s *memoryStore }

func (r *memoryListRepository) Create(_ context.Context, list *domain.List) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lists[list.ID]; ok {
		return fmt.Errorf("list %q: %w", list.ID, domain.ErrConflict)
	}
	list.CreatedAt = r.s.now()
	stored := *list
	r.s.lists[list.ID] = &stored
	return nil
}

func (r *memoryListRepository) FindByID(_ context.Context, id string) (*domain.List, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	list, ok := r.s.lists[id]
	if !ok {
		return nil, fmt.Errorf("list %q: %w", id, domain.ErrNotFound)
	}
	out := *list
	return &out, nil
}

func (r *memoryListRepository) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lists[id]; !ok {
		return false, nil
	}
	delete(r.s.lists, id)
	for itemID, it := range r.s.items {
		if it.ListID == id {
			delete(r.s.items, itemID)
		}
	}
	for k := range r.s.subs {
		if k.listID == id {
			delete(r.s.subs, k)
		}
	}
	return true, nil
}

type memoryItemRepository struct{ s *memoryStore }

func (r *memoryItemRepository) Create(_ context.Context, item *domain.Item, maxLive int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lists[item.ListID]; !ok {
		return fmt.Errorf("list %q: %w", item.ListID, domain.ErrNotFound)
	}

	live := 0
	for _, it := range r.s.items {
		if it.ListID == item.ListID && !it.Deleted {
			live++
		}
	}
	if live >= maxLive {
		return fmt.Errorf("list %q holds %d items: %w", item.ListID, live, domain.ErrCapacityExceeded)
	}

	r.s.nextID++
	r.s.nextRev++
	now := r.s.now()
	item.ID = r.s.nextID
	item.Rev = r.s.nextRev
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Deleted = false

	stored := *item
	r.s.items[item.ID] = &stored
	return nil
}

func (r *memoryItemRepository) Update(_ context.Context, item *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := r.s.lookup(item.ListID, item.ID)
	if err != nil {
		return err
	}

	r.s.nextRev++
	stored.Ciphertext = item.Ciphertext
	stored.Nonce = item.Nonce
	stored.UpdatedByFingerprint = item.UpdatedByFingerprint
	stored.UpdatedAt = r.s.touch(stored.CreatedAt)
	stored.Rev = r.s.nextRev

	*item = *stored
	return nil
}

func (r *memoryItemRepository) SoftDelete(_ context.Context, listID string, itemID int64, updatedBy string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := r.s.lookup(listID, itemID)
	if err != nil {
		return 0, err
	}

	r.s.nextRev++
	stored.Deleted = true
	stored.UpdatedByFingerprint = updatedBy
	stored.UpdatedAt = r.s.touch(stored.CreatedAt)
	stored.Rev = r.s.nextRev
	return stored.Rev, nil
}

func (r *memoryItemRepository) ListItems(_ context.Context, listID string, sinceRev *int64) (*domain.ItemPage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lists[listID]; !ok {
		return nil, fmt.Errorf("list %q: %w", listID, domain.ErrNotFound)
	}

	page := &domain.ItemPage{Items: []*domain.Item{}}
	for _, it := range r.s.items {
		if it.ListID != listID {
			continue
		}
		if page.LatestRev == nil || it.Rev > *page.LatestRev {
			rev := it.Rev
			page.LatestRev = &rev
		}
		if sinceRev == nil && it.Deleted {
			continue
		}
		if sinceRev != nil && it.Rev <= *sinceRev {
			continue
		}
		out := *it
		page.Items = append(page.Items, &out)
	}

	if sinceRev == nil {
		sort.Slice(page.Items, func(i, j int) bool {
			a, b := page.Items[i], page.Items[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
	} else {
		sort.Slice(page.Items, func(i, j int) bool { return page.Items[i].Rev < page.Items[j].Rev })
	}

	return page, nil
}

func (s *memoryStore) lookup(listID string, itemID int64) (*domain.Item, error) {
	if _, ok := s.lists[listID]; !ok {
		return nil, fmt.Errorf("list %q: %w", listID, domain.ErrNotFound)
	}
	it, ok := s.items[itemID]
	if !ok || it.ListID != listID {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}
	return it, nil
}

// touch returns the current time, never earlier than createdAt.
func (s *memoryStore) touch(createdAt time.Time) time.Time {
	now := s.now()
	if now.Before(createdAt) {
		return createdAt
	}
	return now
}

type memorySubscriptionRepository struct{ s *memoryStore }

func (r *memorySubscriptionRepository) Upsert(_ context.Context, sub *domain.PushSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lists[sub.ListID]; !ok {
		return fmt.Errorf("list %q: %w", sub.ListID, domain.ErrNotFound)
	}

	key := subscriptionKey{sub.ListID, sub.ClientFingerprint, sub.DeviceToken}
	now := r.s.now()
	if stored, ok := r.s.subs[key]; ok {
		stored.UpdatedAt = now
		*sub = *stored
		return nil
	}

	sub.CreatedAt = now
	sub.UpdatedAt = now
	stored := *sub
	r.s.subs[key] = &stored
	return nil
}

func (r *memorySubscriptionRepository) Delete(_ context.Context, listID, clientFingerprint, deviceToken string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.subs, subscriptionKey{listID, clientFingerprint, deviceToken})
	return nil
}

func (r *memorySubscriptionRepository) TokensForList(_ context.Context, listID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[string]struct{})
	var tokens []string
	for k := range r.s.subs {
		if k.listID != listID {
			continue
		}
		if _, dup := seen[k.token]; dup {
			continue
		}
		seen[k.token] = struct{}{}
		tokens = append(tokens, k.token)
	}
	sort.Strings(tokens)
	return tokens, nil
}

type memoryStatsRepository struct{ s *memoryStore }

func (r *memoryStatsRepository) Usage(_ context.Context) (*domain.UsageStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	listDays := make(map[string]int64)
	for _, l := range r.s.lists {
		listDays[l.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	itemDays := make(map[string]int64)
	for _, it := range r.s.items {
		itemDays[it.CreatedAt.UTC().Format(time.DateOnly)]++
	}

	return &domain.UsageStats{
		Points:     mergeUsage(toDayCounts(listDays), toDayCounts(itemDays)),
		TotalLists: int64(len(r.s.lists)),
		TotalItems: int64(len(r.s.items)),
	}, nil
}

func toDayCounts(m map[string]int64) []dayCount {
	out := make([]dayCount, 0, len(m))
	for day, n := range m {
		out = append(out, dayCount{day: day, count: n})
	}
	return out
}

type memoryHealth struct{}

func (memoryHealth) Ping(context.Context) error { return nil }
