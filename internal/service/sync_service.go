package service

import (
	"context"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/repository"
)

// SyncService serves snapshot and delta reads of a list.
//
// A client without local state calls ListItems with a nil sinceRev and gets
// the live items plus latest_rev. It then polls with since_rev set to the
// last latest_rev it saw and receives every item changed after it, deleted
// ones included. An empty delta repeats the same latest_rev.
type SyncService struct {
	repo repository.ItemRepository
}

func NewSyncService(repo repository.ItemRepository) *SyncService {
	return &SyncService{repo: repo}
}

func (s *SyncService) ListItems(ctx context.Context, listID string, sinceRev *int64) (*domain.ItemsResponse, error) {
	page, err := s.repo.ListItems(ctx, listID, sinceRev)
	if err != nil {
		return nil, err
	}

	resp := &domain.ItemsResponse{
		Items:     make([]domain.ItemResponse, 0, len(page.Items)),
		LatestRev: page.LatestRev,
	}
	for _, it := range page.Items {
		resp.Items = append(resp.Items, *toItemResponse(it))
	}

	return resp, nil
}
