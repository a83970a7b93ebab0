package service

import (
	"context"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/repository"
)

type StatsService struct {
	repo repository.StatsRepository
}

func NewStatsService(repo repository.StatsRepository) *StatsService {
	return &StatsService{repo: repo}
}

func (s *StatsService) Usage(ctx context.Context) (*domain.UsageStats, error) {
	stats, err := s.repo.Usage(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Points == nil {
		stats.Points = []domain.UsagePoint{}
	}
	return stats, nil
}
