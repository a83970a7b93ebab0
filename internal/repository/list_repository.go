package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sharedlist-sync-server/internal/domain"
)

type listRepository struct {
	db DBTX
}

func NewListRepository(db DBTX) ListRepository {
	return &listRepository{db: db}
}

func (r *listRepository) Create(ctx context.Context, list *domain.List) error {
	query := `INSERT INTO lists (id, owner_fingerprint, meta_ciphertext, meta_nonce)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, list.ID, list.OwnerFingerprint, list.MetaCiphertext, list.MetaNonce).
		Scan(&list.CreatedAt)
	if err != nil {
		if errors.Is(translateError(err), domain.ErrConflict) {
			return fmt.Errorf("list %q: %w", list.ID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create list: %w", err)
	}

	return nil
}

func (r *listRepository) FindByID(ctx context.Context, id string) (*domain.List, error) {
	query := `SELECT id, owner_fingerprint, meta_ciphertext, meta_nonce, created_at
		FROM lists WHERE id = $1`

	var list domain.List
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&list.ID, &list.OwnerFingerprint, &list.MetaCiphertext, &list.MetaNonce, &list.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find list: %w", err)
	}

	return &list, nil
}

func (r *listRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete list: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete list: %w", err)
	}

	return n > 0, nil
}
