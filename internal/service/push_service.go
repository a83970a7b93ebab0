package service

import (
	"context"
	"fmt"
	"strings"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/repository"
	"sharedlist-sync-server/pkg/hash"
)

type PushService struct {
	repo repository.SubscriptionRepository
}

func NewPushService(repo repository.SubscriptionRepository) *PushService {
	return &PushService{repo: repo}
}

// Subscribe registers an iOS device token for list updates. Subscribing the
// same token again only refreshes it.
func (s *PushService) Subscribe(ctx context.Context, listID, identity string, req *domain.PushSubscriptionRequest) error {
	token, err := normalizeToken(req.DeviceToken)
	if err != nil {
		return err
	}

	return s.repo.Upsert(ctx, &domain.PushSubscription{
		ListID:            listID,
		ClientFingerprint: hash.Fingerprint(identity),
		DeviceToken:       token,
	})
}

func (s *PushService) Unsubscribe(ctx context.Context, listID, identity string, req *domain.PushSubscriptionRequest) error {
	token, err := normalizeToken(req.DeviceToken)
	if err != nil {
		return err
	}

	return s.repo.Delete(ctx, listID, hash.Fingerprint(identity), token)
}

func normalizeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("device_token is empty: %w", domain.ErrValidation)
	}
	return token, nil
}
