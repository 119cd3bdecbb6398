package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"motolucro/internal/aggregate"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
)

const statsConcurrency = 8

// UserSummary is one row of the admin user table.
type UserSummary struct {
	core.User
	Stats aggregate.UserStats `json:"stats"`
}

type UserListing struct {
	Overview aggregate.Overview `json:"overview"`
	Users    []UserSummary      `json:"users"`
}

type AdminService struct {
	users  *UserService
	txs    *TransactionService
	logger *applog.Logger
	now    func() time.Time
}

func NewAdminService(users *UserService, txs *TransactionService, logger *applog.Logger) *AdminService {
	return &AdminService{users: users, txs: txs, logger: logger.WithComponent(applog.ComponentAdmin), now: time.Now}
}

// ListUsers returns the users matching search and status with their stats.
// The overview always covers every user. A user whose transactions cannot
// be loaded is listed with zero stats.
func (s *AdminService) ListUsers(ctx context.Context, search string, status aggregate.UserStatus, loc *time.Location) (UserListing, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return UserListing{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)

	stats := make([]aggregate.UserStats, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, u := range users {
		g.Go(func() error {
			list, err := s.txs.Snapshot(gctx, u.ID)
			if err != nil {
				s.logger.WarnContext(gctx, "Failed to load user transactions, listing with zero stats",
					applog.FieldUserID, u.ID,
					applog.FieldError, err)
				return nil
			}
			stats[i] = aggregate.StatsOf(list, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return UserListing{}, err
	}
	if err := ctx.Err(); err != nil {
		return UserListing{}, err
	}

	byID := make(map[string]aggregate.UserStats, len(users))
	out := make([]UserSummary, 0, len(users))
	for i, u := range users {
		byID[u.ID] = stats[i]
		if aggregate.MatchUser(u, search, status) {
			out = append(out, UserSummary{User: u, Stats: stats[i]})
		}
	}
	return UserListing{Overview: aggregate.OverviewOf(users, byID), Users: out}, nil
}

// ToggleSuspension flips the suspension flag of userID. The change is
// immediate on this instance; see UserService.Authorize for the others.
func (s *AdminService) ToggleSuspension(ctx context.Context, userID string) (core.User, error) {
	// the store, not the cache, holds the flag another instance may have set
	u, err := s.users.store.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	updated, err := s.users.SetSuspended(ctx, userID, !u.IsSuspended)
	if err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User suspension changed",
		applog.FieldUserID, userID,
		"suspended", updated.IsSuspended)
	return updated, nil
}
