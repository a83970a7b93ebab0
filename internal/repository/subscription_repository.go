package repository

import (
	"context"
	"errors"
	"fmt"

	"sharedlist-sync-server/internal/domain"
)

type subscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Upsert inserts the subscription or refreshes updated_at when the same
// (list, client, token) triple is already stored.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *domain.PushSubscription) error {
	query := `INSERT INTO ios_push_subscriptions (list_id, client_fingerprint, device_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (list_id, client_fingerprint, device_token)
		DO UPDATE SET updated_at = now()
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, sub.ListID, sub.ClientFingerprint, sub.DeviceToken).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(translateError(err), domain.ErrNotFound) {
			return fmt.Errorf("list %q: %w", sub.ListID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, listID, clientFingerprint, deviceToken string) error {
	query := `DELETE FROM ios_push_subscriptions
		WHERE list_id = $1 AND client_fingerprint = $2 AND device_token = $3`

	if _, err := r.db.ExecContext(ctx, query, listID, clientFingerprint, deviceToken); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) TokensForList(ctx context.Context, listID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT device_token FROM ios_push_subscriptions WHERE list_id = $1 ORDER BY device_token`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}

	return tokens, nil
}
