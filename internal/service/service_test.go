package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/repository"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []int64
}

func (n *recordingNotifier) Notify(listID string, rev int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, rev)
}

func (n *recordingNotifier) revs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.notices...)
}

type services struct {
	lists    *ListService
	items    *ItemService
	sync     *SyncService
	push     *PushService
	notifier *recordingNotifier
	repos    *repository.Repositories
}

func newServices(maxItems int) *services {
	repos := repository.NewMemoryRepositories()
	n := &recordingNotifier{}
	return &services{
		lists:    NewListService(repos.Lists),
		items:    NewItemService(repos.Items, n, maxItems),
		sync:     NewSyncService(repos.Items),
		push:     NewPushService(repos.Subscriptions),
		notifier: n,
		repos:    repos,
	}
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func itemReq(s string) *domain.ItemRequest {
	return &domain.ItemRequest{CiphertextB64: b64(s), NonceB64: b64("nonce-" + s)}
}

func mustCreateList(t *testing.T, s *services, id string) {
	t.Helper()
	_, err := s.lists.Create(context.Background(), "client-1", &domain.CreateListRequest{
		ListID: id, MetaCiphertextB64: b64("meta"), MetaNonceB64: b64("n"),
	})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
}

func TestListService_CreateGetDelete(t *testing.T) {
	s := newServices(0)
	ctx := context.Background()

	resp, err := s.lists.Create(ctx, "client-1", &domain.CreateListRequest{
		ListID: "l1", MetaCiphertextB64: b64("meta"), MetaNonceB64: b64("n"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ListID != "l1" || resp.MetaCiphertextB64 != b64("meta") || resp.CreatedAt.IsZero() {
		t.Fatalf("unexpected response: %+v", resp)
	}

	_, err = s.lists.Create(ctx, "client-2", &domain.CreateListRequest{
		ListID: "l1", MetaCiphertextB64: b64("x"), MetaNonceB64: b64("y"),
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := s.lists.Get(ctx, "l1")
	if err != nil || got.MetaNonceB64 != b64("n") {
		t.Fatalf("unexpected get result: %+v, %v", got, err)
	}

	del, err := s.lists.Delete(ctx, "l1")
	if err != nil || !del.Deleted {
		t.Fatalf("expected first delete to remove the list: %+v, %v", del, err)
	}
	del, err = s.lists.Delete(ctx, "l1")
	if err != nil || del.Deleted {
		t.Fatalf("expected second delete to report false: %+v, %v", del, err)
	}

	if err := s.lists.Exists(ctx, "l1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListService_Create_StoresFingerprintNotIdentity(t *testing.T) {
	s := newServices(0)
	mustCreateList(t, s, "l1")

	list, err := s.repos.Lists.FindByID(context.Background(), "l1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.OwnerFingerprint == "client-1" || len(list.OwnerFingerprint) != 64 {
		t.Fatalf("expected a sha256 fingerprint, got %q", list.OwnerFingerprint)
	}
}

func TestListService_Create_RejectsBadBase64(t *testing.T) {
	s := newServices(0)

	_, err := s.lists.Create(context.Background(), "c", &domain.CreateListRequest{
		ListID: "l1", MetaCiphertextB64: "%%%", MetaNonceB64: b64("n"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestItemService_SyncScenario(t *testing.T) {
	s := newServices(0)
	ctx := context.Background()
	mustCreateList(t, s, "l1")

	a, _ := s.items.Create(ctx, "l1", "c1", itemReq("A"))
	s.items.Create(ctx, "l1", "c1", itemReq("B"))
	s.items.Create(ctx, "l1", "c2", itemReq("C"))

	snap, err := s.sync.ListItems(ctx, "l1", nil)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Items) != 3 || snap.LatestRev == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	r3 := *snap.LatestRev

	updA, err := s.items.Update(ctx, "l1", a.ItemID, "c2", itemReq("A2"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	d, err := s.items.Create(ctx, "l1", "c1", itemReq("D"))
	if err != nil {
		t.Fatalf("create D: %v", err)
	}
	if !(updA.Rev > r3 && d.Rev > updA.Rev) {
		t.Fatalf("revs must grow: r3=%d A=%d D=%d", r3, updA.Rev, d.Rev)
	}

	delta, err := s.sync.ListItems(ctx, "l1", &r3)
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	if len(delta.Items) != 2 ||
		delta.Items[0].ItemID != a.ItemID || delta.Items[0].CiphertextB64 != b64("A2") ||
		delta.Items[1].ItemID != d.ItemID {
		t.Fatalf("unexpected delta: %+v", delta.Items)
	}
	if *delta.LatestRev != d.Rev {
		t.Fatalf("expected latest_rev %d, got %d", d.Rev, *delta.LatestRev)
	}

	tail, err := s.sync.ListItems(ctx, "l1", delta.LatestRev)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(tail.Items) != 0 || tail.Items == nil {
		t.Fatalf("expected an empty non-nil item slice, got %#v", tail.Items)
	}
	if *tail.LatestRev != d.Rev {
		t.Fatalf("tail must repeat latest_rev %d, got %d", d.Rev, *tail.LatestRev)
	}
}

func TestItemService_NotifiesEveryMutation(t *testing.T) {
	s := newServices(0)
	ctx := context.Background()
	mustCreateList(t, s, "l1")

	created, _ := s.items.Create(ctx, "l1", "c", itemReq("x"))
	updated, _ := s.items.Update(ctx, "l1", created.ItemID, "c", itemReq("y"))
	deleted, err := s.items.Delete(ctx, "l1", created.ItemID, "c")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Deleted || deleted.ItemID != created.ItemID {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}

	want := []int64{created.Rev, updated.Rev, deleted.Rev}
	got := s.notifier.revs()
	if len(got) != len(want) {
		t.Fatalf("expected notices %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected notices %v, got %v", want, got)
		}
	}
}

func TestItemService_FailuresDoNotNotify(t *testing.T) {
	s := newServices(1)
	ctx := context.Background()
	mustCreateList(t, s, "l1")

	if _, err := s.items.Create(ctx, "missing", "c", itemReq("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.items.Create(ctx, "l1", "c", itemReq("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.items.Create(ctx, "l1", "c", itemReq("y")); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if _, err := s.items.Update(ctx, "l1", 999, "c", itemReq("z")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.items.Create(ctx, "l1", "c", &domain.ItemRequest{CiphertextB64: "!!", NonceB64: b64("n")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if got := s.notifier.revs(); len(got) != 1 {
		t.Fatalf("expected exactly one notice, got %v", got)
	}
}

func TestItemService_DeletedItemsStayInDeltas(t *testing.T) {
	s := newServices(0)
	ctx := context.Background()
	mustCreateList(t, s, "l1")

	it, _ := s.items.Create(ctx, "l1", "c", itemReq("x"))
	since := it.Rev
	if _, err := s.items.Delete(ctx, "l1", it.ItemID, "c"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	snap, _ := s.sync.ListItems(ctx, "l1", nil)
	if len(snap.Items) != 0 {
		t.Fatalf("snapshot must hide deleted items: %+v", snap.Items)
	}

	delta, _ := s.sync.ListItems(ctx, "l1", &since)
	if len(delta.Items) != 1 || !delta.Items[0].Deleted {
		t.Fatalf("delta must carry the tombstone: %+v", delta.Items)
	}
}

func TestSyncService_EmptyAndMissingList(t *testing.T) {
	s := newServices(0)
	ctx := context.Background()

	if _, err := s.sync.ListItems(ctx, "nope", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mustCreateList(t, s, "l1")
	resp, err := s.sync.ListItems(ctx, "l1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.LatestRev != nil || resp.Items == nil || len(resp.Items) != 0 {
		t.Fatalf("expected empty items and null latest_rev, got %#v", resp)
	}
}

func TestPushService_SubscribeAndUnsubscribe(t *testing.T) {
	s := newServices(0)
	ctx := context.Background()
	mustCreateList(t, s, "l1")

	req := &domain.PushSubscriptionRequest{DeviceToken: "  abc  "}
	if err := s.push.Subscribe(ctx, "l1", "c1", req); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := s.push.Subscribe(ctx, "l1", "c1", req); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}

	tokens, _ := s.repos.Subscriptions.TokensForList(ctx, "l1")
	if len(tokens) != 1 || tokens[0] != "abc" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}

	if err := s.push.Unsubscribe(ctx, "l1", "c1", req); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	tokens, _ = s.repos.Subscriptions.TokensForList(ctx, "l1")
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens, got %v", tokens)
	}

	if err := s.push.Subscribe(ctx, "missing", "c1", req); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.push.Subscribe(ctx, "l1", "c1", &domain.PushSubscriptionRequest{DeviceToken: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthService_Check(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")

	tests := []struct {
		name  string
		db    Pinger
		quota Pinger
		want  error
	}{
		{"all up", fakePinger{}, fakePinger{}, nil},
		{"quota disabled", fakePinger{}, nil, nil},
		{"db down", fakePinger{err: down}, fakePinger{}, ErrDatabaseUnavailable},
		{"redis down", fakePinger{}, fakePinger{err: down}, ErrQuotaStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHealthService(tt.db, tt.quota).Check(ctx)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStatsService_Usage(t *testing.T) {
	s := newServices(0)
	stats := NewStatsService(s.repos.Stats)

	got, err := stats.Usage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Points == nil || got.TotalLists != 0 {
		t.Fatalf("unexpected empty usage: %+v", got)
	}

	mustCreateList(t, s, "l1")
	got, _ = stats.Usage(context.Background())
	if got.TotalLists != 1 {
		t.Fatalf("expected 1 list, got %d", got.TotalLists)
	}
}
