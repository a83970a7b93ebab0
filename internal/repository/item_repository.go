package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sharedlist-sync-server/internal/domain"
)

const itemColumns = `id, list_id, ciphertext, nonce, created_at, updated_at, rev, deleted, updated_by_fingerprint`

type itemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *domain.Item, maxLive int) error {
	return withTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockList(ctx, tx, item.ListID); err != nil {
			return fmt.Errorf("list %q: %w", item.ListID, err)
		}

		var live int
		err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM list_items WHERE list_id = $1 AND NOT deleted`, item.ListID).Scan(&live)
		if err != nil {
			return fmt.Errorf("failed to count items: %w", err)
		}
		if live >= maxLive {
			return fmt.Errorf("list %q holds %d items: %w", item.ListID, live, domain.ErrCapacityExceeded)
		}

		query := `INSERT INTO list_items (list_id, ciphertext, nonce, updated_by_fingerprint)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at, rev, deleted`

		err = tx.QueryRowContext(ctx, query, item.ListID, item.Ciphertext, item.Nonce, item.UpdatedByFingerprint).
			Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.Rev, &item.Deleted)
		if err != nil {
			if errors.Is(translateError(err), domain.ErrNotFound) {
				return fmt.Errorf("list %q: %w", item.ListID, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to create item: %w", err)
		}

		return nil
	})
}

func (r *itemRepository) Update(ctx context.Context, item *domain.Item) error {
	return withTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockList(ctx, tx, item.ListID); err != nil {
			return fmt.Errorf("list %q: %w", item.ListID, err)
		}

		query := `UPDATE list_items
			SET ciphertext = $1,
				nonce = $2,
				updated_by_fingerprint = $3,
				updated_at = GREATEST(now(), created_at),
				rev = nextval('list_items_rev_seq')
			WHERE list_id = $4 AND id = $5
			RETURNING created_at, updated_at, rev, deleted`

		err := tx.QueryRowContext(ctx, query, item.Ciphertext, item.Nonce, item.UpdatedByFingerprint, item.ListID, item.ID).
			Scan(&item.CreatedAt, &item.UpdatedAt, &item.Rev, &item.Deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %d: %w", item.ID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}

		return nil
	})
}

func (r *itemRepository) SoftDelete(ctx context.Context, listID string, itemID int64, updatedBy string) (int64, error) {
	var rev int64

	err := withTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockList(ctx, tx, listID); err != nil {
			return fmt.Errorf("list %q: %w", listID, err)
		}

		query := `UPDATE list_items
			SET deleted = TRUE,
				updated_by_fingerprint = $1,
				updated_at = GREATEST(now(), created_at),
				rev = nextval('list_items_rev_seq')
			WHERE list_id = $2 AND id = $3
			RETURNING rev`

		err := tx.QueryRowContext(ctx, query, updatedBy, listID, itemID).Scan(&rev)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return rev, nil
}

func (r *itemRepository) ListItems(ctx context.Context, listID string, sinceRev *int64) (*domain.ItemPage, error) {
	page := &domain.ItemPage{Items: []*domain.Item{}}

	err := withTx(ctx, r.db, readSnapshot, func(ctx context.Context, tx DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM lists WHERE id = $1`, listID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("list %q: %w", listID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to find list: %w", err)
		}

		var rows *sql.Rows
		if sinceRev == nil {
			rows, err = tx.QueryContext(ctx, `SELECT `+itemColumns+`
				FROM list_items
				WHERE list_id = $1 AND NOT deleted
				ORDER BY created_at, id`, listID)
		} else {
			rows, err = tx.QueryContext(ctx, `SELECT `+itemColumns+`
				FROM list_items
				WHERE list_id = $1 AND rev > $2
				ORDER BY rev`, listID, *sinceRev)
		}
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var it domain.Item
			if err := rows.Scan(&it.ID, &it.ListID, &it.Ciphertext, &it.Nonce, &it.CreatedAt,
				&it.UpdatedAt, &it.Rev, &it.Deleted, &it.UpdatedByFingerprint); err != nil {
				return fmt.Errorf("failed to scan item: %w", err)
			}
			page.Items = append(page.Items, &it)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}

		var latest sql.NullInt64
		err = tx.QueryRowContext(ctx, `SELECT MAX(rev) FROM list_items WHERE list_id = $1`, listID).Scan(&latest)
		if err != nil {
			return fmt.Errorf("failed to read latest rev: %w", err)
		}
		if latest.Valid {
			page.LatestRev = &latest.Int64
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}
