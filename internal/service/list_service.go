package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/repository"
	"sharedlist-sync-server/pkg/hash"
)

type ListService struct {
	repo repository.ListRepository
}

func NewListService(repo repository.ListRepository) *ListService {
	return &ListService{repo: repo}
}

func (s *ListService) Create(ctx context.Context, identity string, req *domain.CreateListRequest) (*domain.ListResponse, error) {
	meta, err := decodeBase64("meta_ciphertext_b64", req.MetaCiphertextB64)
	if err != nil {
		return nil, err
	}
	nonce, err := decodeBase64("meta_nonce_b64", req.MetaNonceB64)
	if err != nil {
		return nil, err
	}

	list := &domain.List{
		ID:               req.ListID,
		OwnerFingerprint: hash.Fingerprint(identity),
		MetaCiphertext:   meta,
		MetaNonce:        nonce,
	}
	if err := s.repo.Create(ctx, list); err != nil {
		return nil, err
	}

	return toListResponse(list), nil
}

func (s *ListService) Get(ctx context.Context, id string) (*domain.ListResponse, error) {
	list, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toListResponse(list), nil
}

// Exists reports nil when the list is stored and a wrapped
// domain.ErrNotFound otherwise.
func (s *ListService) Exists(ctx context.Context, id string) error {
	_, err := s.repo.FindByID(ctx, id)
	return err
}

// Delete removes the list with its items and subscriptions. Deleting a
// missing list is not an error.
func (s *ListService) Delete(ctx context.Context, id string) (*domain.ListDeletedResponse, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.ListDeletedResponse{ListID: id, Deleted: removed}, nil
}

func toListResponse(list *domain.List) *domain.ListResponse {
	return &domain.ListResponse{
		ListID:            list.ID,
		MetaCiphertextB64: base64.StdEncoding.EncodeToString(list.MetaCiphertext),
		MetaNonceB64:      base64.StdEncoding.EncodeToString(list.MetaNonce),
		CreatedAt:         list.CreatedAt,
	}
}

func decodeBase64(field, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 in %s: %w", field, domain.ErrValidation)
	}
	return b, nil
}
