package principals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
	"github.com/plantdesk/plantdesk/internal/shared"
)

var (
	// ErrInvalidRole indicates a role outside the enumerated set.
	ErrInvalidRole = fmt.Errorf("principals: invalid role: %w", httpx.ErrValidation)
	// ErrInvalidUnit indicates a unit outside the configured list.
	ErrInvalidUnit = fmt.Errorf("principals: invalid unit: %w", httpx.ErrValidation)
)

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles principal provisioning, permission administration and the
// per-request principal lookup used by the gate.
type Service struct {
	repo      Repository
	cache     *Cache
	audit     Auditor
	logger    *slog.Logger
	validator *validator.Validate
	loads     singleflight.Group
	hashCost  int
}

const loadTimeout = 5 * time.Second

// NewService builds Service instance.
func NewService(repo Repository, cache *Cache, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		validator: validator.New(),
		hashCost:  bcrypt.DefaultCost,
	}
}

// Principal implements rbac.Loader. Concurrent loads of the same id share one
// repository call. Inactive accounts resolve to shared.ErrNotFound.
func (s *Service) Principal(ctx context.Context, id int64) (access.Principal, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return access.Principal{}, err
	}
	if !u.IsActive {
		return access.Principal{}, shared.ErrNotFound
	}
	return u.Principal(), nil
}

func (s *Service) load(ctx context.Context, id int64) (User, error) {
	if u, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("principals cache get", slog.Int64("user_id", id), slog.Any("error", err))
	} else if ok {
		return u, nil
	}
	// The shared load outlives any single caller; a cancelled request must
	// not fail the others waiting on it.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(flightKey(id), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(loadCtx, loadTimeout)
		defer cancel()
		gen, genErr := s.cache.Generation(ctx, id)
		u, err := s.repo.Get(ctx, id)
		if err != nil {
			return User{}, err
		}
		if genErr != nil {
			s.logger.Warn("principals cache generation", slog.Int64("user_id", id), slog.Any("error", genErr))
			return u, nil
		}
		if _, err := s.cache.SetAt(ctx, u, gen); err != nil {
			s.logger.Warn("principals cache set", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return u, nil
	})
	select {
	case <-ctx.Done():
		return User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return User{}, res.Err
		}
		return res.Val.(User), nil
	}
}

// forget makes the next load of id read the database again.
func (s *Service) forget(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("principals cache invalidate", slog.Int64("user_id", id), slog.Any("error", err))
	}
	s.loads.Forget(flightKey(id))
}

func flightKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// List returns the principals inside scope.
func (s *Service) List(ctx context.Context, actor access.Principal, scope rbac.Scope) ([]Summary, error) {
	if err := requireManager(actor, scope); err != nil {
		return nil, err
	}
	unit, filtered := scope.UnitFilter()
	return s.repo.List(ctx, ListFilter{Unit: unit, AllUnits: !filtered})
}

// Get returns one principal inside scope.
func (s *Service) Get(ctx context.Context, actor access.Principal, scope rbac.Scope, id int64) (User, error) {
	if err := requireManager(actor, scope); err != nil {
		return User{}, err
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := scope.Check(u.Unit); err != nil {
		return User{}, err
	}
	return u, nil
}

// Provision creates a principal with the default document for its role.
func (s *Service) Provision(ctx context.Context, actor access.Principal, scope rbac.Scope, in ProvisionInput) (User, error) {
	if err := requireManager(actor, scope); err != nil {
		return User{}, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := s.validator.Struct(in); err != nil {
		return User{}, fmt.Errorf("principals: %w: %s", httpx.ErrValidation, err.Error())
	}
	role, ok := access.ParseRole(in.Role)
	if !ok {
		return User{}, ErrInvalidRole
	}
	if !slices.Contains(access.Units(), in.Unit) {
		return User{}, ErrInvalidUnit
	}
	if role == access.RoleSuperUser && !actor.Evaluator().IsSuper() {
		return User{}, denied(scope)
	}
	if err := scope.Check(in.Unit); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("principals: hash password: %w", err)
	}
	u := User{
		Email:       in.Email,
		Name:        in.Name,
		Role:        role,
		Unit:        in.Unit,
		Permissions: access.Generate(role, in.Unit),
		IsActive:    true,
	}
	id, err := s.repo.Create(ctx, u, string(hash))
	if err != nil {
		return User{}, err
	}
	u.ID = id
	s.record(ctx, actor.ID, "principal.provision", id, map[string]any{"role": string(role), "unit": in.Unit})
	return u, nil
}

// ReplacePermissions swaps the whole stored document of principal id. The
// document's role and unit are pinned to the record, and only all-unit
// administrators may grant all-unit access. Non-super administrators cannot
// edit their own document or grant anything they do not hold themselves.
func (s *Service) ReplacePermissions(ctx context.Context, actor access.Principal, scope rbac.Scope, id int64, set access.PermissionSet) (User, error) {
	if err := access.Validate(set); err != nil {
		return User{}, err
	}
	if eval := actor.Evaluator(); !eval.IsSuper() {
		if id == actor.ID {
			return User{}, denied(scope)
		}
		if excess := access.Exceeding(eval, set); len(excess) > 0 {
			s.logger.Warn("permission grant exceeds actor",
				slog.Int64("actor_id", actor.ID),
				slog.Int64("user_id", id),
				slog.Any("grants", excess),
			)
			return User{}, denied(scope)
		}
	}
	return s.replace(ctx, actor, scope, id, "principal.permissions.replace", func(u User) access.PermissionSet {
		set = set.Clone()
		set.Role = u.Role.Token()
		set.Unit = u.Unit
		if !scope.AllUnits {
			set.CanAccessAllUnits = false
		}
		return set
	})
}

// ResetDefaults replaces the document of principal id with the generated
// default for its role.
func (s *Service) ResetDefaults(ctx context.Context, actor access.Principal, scope rbac.Scope, id int64) (User, error) {
	return s.replace(ctx, actor, scope, id, "principal.permissions.reset", func(u User) access.PermissionSet {
		return access.Generate(u.Role, u.Unit)
	})
}

func (s *Service) replace(ctx context.Context, actor access.Principal, scope rbac.Scope, id int64, action string, build func(User) access.PermissionSet) (User, error) {
	if err := requireManager(actor, scope); err != nil {
		return User{}, err
	}
	var updated User
	var before []string
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		u, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := scope.Check(u.Unit); err != nil {
			return err
		}
		if u.Role == access.RoleSuperUser && !actor.Evaluator().IsSuper() {
			return denied(scope)
		}
		before = moduleNames(u.Permissions)
		u.Permissions = build(u)
		if err := repo.ReplacePermissions(ctx, id, u.Permissions); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.forget(ctx, id)
	s.record(ctx, actor.ID, action, id, map[string]any{
		"before": before,
		"after":  moduleNames(updated.Permissions),
	})
	return updated, nil
}

func moduleNames(set access.PermissionSet) []string {
	names := make([]string, 0, len(set.Modules))
	for _, m := range set.Modules {
		names = append(names, m.Name)
	}
	return names
}

// Profile returns the caller's own record.
func (s *Service) Profile(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// UpdateProfile changes the caller's display name.
func (s *Service) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return User{}, fmt.Errorf("principals: %w: %s", httpx.ErrValidation, err.Error())
	}
	if err := s.repo.UpdateProfile(ctx, id, in.Name); err != nil {
		return User{}, err
	}
	s.forget(ctx, id)
	return s.repo.Get(ctx, id)
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, hash, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	if !u.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "users",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("principals audit", slog.String("action", action), slog.Any("error", err))
	}
}

func requireManager(actor access.Principal, scope rbac.Scope) error {
	eval := actor.Evaluator()
	if eval.CanManageUsers() || eval.IsSuper() {
		return nil
	}
	return denied(scope)
}

func denied(scope rbac.Scope) error {
	return &access.DeniedError{
		Module:  scope.Module,
		Feature: scope.Feature,
		Action:  string(scope.Action),
		Reason:  access.ReasonActionDenied,
	}
}
