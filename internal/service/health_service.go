package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDatabaseUnavailable   = errors.New("DB not available")
	ErrQuotaStoreUnavailable = errors.New("Redis not available")
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService checks the storage backends a request depends on. A nil
// quota pinger means admission control is off and is not checked.
type HealthService struct {
	db    Pinger
	quota Pinger
}

func NewHealthService(db, quota Pinger) *HealthService {
	return &HealthService{db: db, quota: quota}
}

func (s *HealthService) Check(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	if s.quota != nil {
		if err := s.quota.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrQuotaStoreUnavailable, err)
		}
	}
	return nil
}
