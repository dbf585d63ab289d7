package services

import (
	"context"

	"github.com/darigo/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// DashboardStats is the admin overview.
type DashboardStats struct {
	Users      types.UserCounts     `json:"users"`
	Properties types.PropertyCounts `json:"properties"`
}

// StatsService aggregates counters across repositories.
type StatsService struct {
	users      UserRepository
	properties PropertyRepository
}

func NewStatsService(users UserRepository, properties PropertyRepository) *StatsService {
	return &StatsService{users: users, properties: properties}
}

// Dashboard fetches user and listing counts concurrently.
func (s *StatsService) Dashboard(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.users.Counts(ctx)
		if err != nil {
			return err
		}
		stats.Users = counts
		return nil
	})
	g.Go(func() error {
		counts, err := s.properties.Counts(ctx, "")
		if err != nil {
			return err
		}
		stats.Properties = counts
		return nil
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// ForOwner returns the listing counters of one user.
func (s *StatsService) ForOwner(ctx context.Context, ownerID string) (types.PropertyCounts, error) {
	return s.properties.Counts(ctx, ownerID)
}
