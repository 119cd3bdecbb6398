package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"motolucro/internal/cache"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/storage"
)

// ErrSuspended is returned for users locked out by an admin.
var ErrSuspended = errors.New("account suspended")

// UserService keeps profile, goal and suspension state. Users are created
// on first sight of a valid token.
type UserService struct {
	store  storage.UserStore
	users  cache.Cache[core.User]
	logger *applog.Logger
}

func NewUserService(store storage.UserStore, users cache.Cache[core.User], logger *applog.Logger) *UserService {
	return &UserService{store: store, users: users, logger: logger.WithComponent(applog.ComponentGoals)}
}

// EnsureUser loads userID, creating it with DefaultGoal when unknown. A
// changed token email is written back.
func (s *UserService) EnsureUser(ctx context.Context, userID, email string) (core.User, error) {
	if strings.TrimSpace(userID) == "" {
		return core.User{}, core.ErrMissingUser
	}
	if u, ok := s.cached(userID); ok && (email == "" || u.Email == email) {
		return u, nil
	}

	u, err := s.store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		u, err = s.store.UpsertProfile(ctx, core.User{ID: userID, Email: email, GoalAmount: core.DefaultGoal})
		if err != nil {
			return core.User{}, fmt.Errorf("create user: %w", err)
		}
		s.logger.InfoContext(ctx, "User created", applog.FieldUserID, userID)
	case err != nil:
		return core.User{}, fmt.Errorf("load user: %w", err)
	case email != "" && u.Email != email:
		u.Email = email
		if u, err = s.store.UpsertProfile(ctx, u); err != nil {
			return core.User{}, fmt.Errorf("update email: %w", err)
		}
	}
	s.remember(u)
	return u, nil
}

// Authorize is EnsureUser plus the suspension check. It reads the user
// cache, so a suspension made on another instance takes effect here once
// the cached entry expires (CACHE_TTL).
func (s *UserService) Authorize(ctx context.Context, userID, email string) (core.User, error) {
	u, err := s.EnsureUser(ctx, userID, email)
	if err != nil {
		return core.User{}, err
	}
	if u.IsSuspended {
		return u, ErrSuspended
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID, email string, p core.Profile) (core.User, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	if err := p.Validate(); err != nil {
		return core.User{}, err
	}
	u, err := s.EnsureUser(ctx, userID, email)
	if err != nil {
		return core.User{}, err
	}
	u.Name, u.Phone = p.Name, p.Phone
	u, err = s.store.UpsertProfile(ctx, u)
	if err != nil {
		return core.User{}, fmt.Errorf("save profile: %w", err)
	}
	s.remember(u)
	return u, nil
}

func (s *UserService) SetGoal(ctx context.Context, userID string, goal core.Money) (core.User, error) {
	if err := core.ValidateGoal(goal); err != nil {
		return core.User{}, err
	}
	u, err := s.store.SetGoal(ctx, userID, goal)
	if err != nil {
		return core.User{}, fmt.Errorf("set goal: %w", err)
	}
	s.remember(u)
	s.logger.InfoContext(ctx, "Goal updated", applog.FieldUserID, userID, applog.FieldValueCents, goal.Cents)
	return u, nil
}

func (s *UserService) SetSuspended(ctx context.Context, userID string, suspended bool) (core.User, error) {
	u, err := s.store.SetSuspended(ctx, userID, suspended)
	if err != nil {
		return core.User{}, fmt.Errorf("set suspended: %w", err)
	}
	s.remember(u)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (core.User, error) {
	if u, ok := s.cached(userID); ok {
		return u, nil
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	s.remember(u)
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]core.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *UserService) cached(id string) (core.User, bool) {
	if s.users == nil {
		return core.User{}, false
	}
	return s.users.Get(id)
}

func (s *UserService) remember(u core.User) {
	if s.users != nil {
		s.users.Set(u.ID, u)
	}
}
