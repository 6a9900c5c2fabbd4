package auth

import (
	"context"
	"errors"
	"time"

	"github.com/plantdesk/plantdesk/internal/navigation"
	"github.com/plantdesk/plantdesk/internal/principals"
	"github.com/plantdesk/plantdesk/internal/shared"
)

// Accounts is the principal store as seen by authentication.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (principals.User, error)
	Profile(ctx context.Context, id int64) (principals.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	accounts  Accounts
	snapshots *navigation.Cache
}

// NewService constructs a new Service.
func NewService(repo Repository, accounts Accounts, snapshots *navigation.Cache) *Service {
	return &Service{repo: repo, accounts: accounts, snapshots: snapshots}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (principals.User, error) {
	return s.accounts.Authenticate(ctx, email, password)
}

// Establish builds the session view for u and caches it for sessionID,
// replacing any earlier snapshot.
func (s *Service) Establish(ctx context.Context, sessionID string, u principals.User) (SessionView, error) {
	view := newSessionView(u)
	if s.snapshots != nil && sessionID != "" {
		if err := s.snapshots.Store(ctx, sessionID, view.Navigation); err != nil {
			return view, err
		}
	}
	return view, nil
}

// Current returns the session view for userID, serving the navigation model
// from the session snapshot when one exists.
func (s *Service) Current(ctx context.Context, sessionID string, userID int64) (SessionView, error) {
	u, err := s.accounts.Profile(ctx, userID)
	if err != nil {
		return SessionView{}, err
	}
	if !u.IsActive {
		return SessionView{}, shared.ErrNotFound
	}
	if s.snapshots == nil || sessionID == "" {
		return newSessionView(u), nil
	}
	nav, err := s.snapshots.Load(ctx, sessionID)
	if errors.Is(err, navigation.ErrNoSnapshot) {
		return s.Establish(ctx, sessionID, u)
	}
	if err != nil {
		return SessionView{}, err
	}
	view := newSessionView(u)
	view.Navigation = nav
	return view, nil
}

// Refresh rebuilds the snapshot of sessionID from the stored record.
func (s *Service) Refresh(ctx context.Context, sessionID string, userID int64) (SessionView, error) {
	u, err := s.accounts.Profile(ctx, userID)
	if err != nil {
		return SessionView{}, err
	}
	if !u.IsActive {
		return SessionView{}, shared.ErrNotFound
	}
	return s.Establish(ctx, sessionID, u)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession revokes the session record and drops its navigation snapshot.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if s.snapshots != nil {
		if err := s.snapshots.Drop(ctx, id); err != nil {
			return err
		}
	}
	if s.repo == nil {
		return nil
	}
	return s.repo.DeleteSession(ctx, id)
}

func newSessionView(u principals.User) SessionView {
	return SessionView{
		Account:     Account{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Unit: u.Unit},
		Permissions: u.Permissions,
		Navigation:  navigation.Build(u.Principal()),
	}
}
