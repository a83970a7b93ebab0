package service

import (
	"context"
	"encoding/base64"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/notify"
	"sharedlist-sync-server/internal/repository"
	"sharedlist-sync-server/pkg/hash"
)

// ItemService applies item mutations and tells the notifier about each
// committed revision.
type ItemService struct {
	repo     repository.ItemRepository
	notifier notify.Notifier
	maxItems int
}

func NewItemService(repo repository.ItemRepository, notifier notify.Notifier, maxItems int) *ItemService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if maxItems <= 0 {
		maxItems = domain.MaxItemsPerList
	}
	return &ItemService{
		repo:     repo,
		notifier: notifier,
		maxItems: maxItems,
	}
}

func (s *ItemService) Create(ctx context.Context, listID, identity string, req *domain.ItemRequest) (*domain.ItemResponse, error) {
	item, err := newItem(listID, identity, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, item, s.maxItems); err != nil {
		return nil, err
	}

	s.notifier.Notify(listID, item.Rev)
	return toItemResponse(item), nil
}

func (s *ItemService) Update(ctx context.Context, listID string, itemID int64, identity string, req *domain.ItemRequest) (*domain.ItemResponse, error) {
	item, err := newItem(listID, identity, req)
	if err != nil {
		return nil, err
	}
	item.ID = itemID

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	s.notifier.Notify(listID, item.Rev)
	return toItemResponse(item), nil
}

func (s *ItemService) Delete(ctx context.Context, listID string, itemID int64, identity string) (*domain.ItemDeletedResponse, error) {
	rev, err := s.repo.SoftDelete(ctx, listID, itemID, hash.Fingerprint(identity))
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(listID, rev)
	return &domain.ItemDeletedResponse{ItemID: itemID, Deleted: true, Rev: rev}, nil
}

func newItem(listID, identity string, req *domain.ItemRequest) (*domain.Item, error) {
	ciphertext, err := decodeBase64("ciphertext_b64", req.CiphertextB64)
	if err != nil {
		return nil, err
	}
	nonce, err := decodeBase64("nonce_b64", req.NonceB64)
	if err != nil {
		return nil, err
	}

	return &domain.Item{
		ListID:               listID,
		Ciphertext:           ciphertext,
		Nonce:                nonce,
		UpdatedByFingerprint: hash.Fingerprint(identity),
	}, nil
}

func toItemResponse(item *domain.Item) *domain.ItemResponse {
	return &domain.ItemResponse{
		ItemID:        item.ID,
		CiphertextB64: base64.StdEncoding.EncodeToString(item.Ciphertext),
		NonceB64:      base64.StdEncoding.EncodeToString(item.Nonce),
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
		Rev:           item.Rev,
		Deleted:       item.Deleted,
	}
}
