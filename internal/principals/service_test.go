package principals

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
	"github.com/plantdesk/plantdesk/internal/shared"
)

type memRepo struct {
	mu     sync.Mutex
	users  map[int64]User
	hashes map[int64]string
	raw    map[int64][]byte
	nextID int64
	gets   int
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int64]User{}, hashes: map[int64]string{}, raw: map[int64][]byte{}, nextID: 1}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Summary{}
	for id := int64(1); id < m.nextID; id++ {
		u, ok := m.users[id]
		if !ok || (!filter.AllUnits && u.Unit != filter.Unit) {
			continue
		}
		out = append(out, Summary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Unit: u.Unit, IsActive: u.IsActive})
	}
	return out, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	u.Permissions = u.Permissions.Clone()
	return u, nil
}

func (m *memRepo) FindByEmail(ctx context.Context, email string) (User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, m.hashes[id], nil
		}
	}
	return User{}, "", shared.ErrNotFound
}

func (m *memRepo) Create(ctx context.Context, u User, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return 0, httpx.ErrDuplicate
		}
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	m.hashes[u.ID] = passwordHash
	return u.ID, nil
}

func (m *memRepo) ReplacePermissions(ctx context.Context, id int64, set access.PermissionSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Permissions = set.Clone()
	m.users[id] = u
	return nil
}

func (m *memRepo) UpdateProfile(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Name = name
	m.users[id] = u
	return nil
}

func (m *memRepo) Each(ctx context.Context, fn func(id int64, raw []byte) error) error {
	for id := int64(1); id < m.nextID; id++ {
		raw, ok := m.raw[id]
		if !ok {
			doc, err := json.Marshal(m.users[id].Permissions)
			if err != nil {
				return err
			}
			raw = doc
		}
		if err := fn(id, raw); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) seed(u User) User {
	id, _ := m.Create(context.Background(), u, "")
	u.ID = id
	return u
}

type auditSpy struct {
	logs []shared.AuditLog
}

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(t *testing.T, repo Repository) (*Service, *auditSpy) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	audit := &auditSpy{}
	svc := NewService(repo, NewCache(client, time.Minute), audit, nil)
	svc.hashCost = bcrypt.MinCost
	return svc, audit
}

func superActor() access.Principal {
	return access.Principal{ID: 100, Role: access.RoleSuperUser, Unit: "Main Office", Permissions: access.Generate(access.RoleSuperUser, "Main Office")}
}

func unitHeadActor() access.Principal {
	set, _ := access.EnableModule(access.Generate(access.RoleUnitHead, "Unit A"), access.ModuleSettings)
	for _, a := range []access.Action{access.ActionView, access.ActionAdd, access.ActionEdit} {
		set, _ = access.SetFeatureAction(set, access.ModuleSettings, "users", a, true)
	}
	set, _ = access.EnableModule(set, access.ModuleManufacturing)
	set, _ = access.SetFeatureAction(set, access.ModuleManufacturing, "allJobs", access.ActionView, true)
	return access.Principal{ID: 101, Role: access.RoleUnitHead, Unit: "Unit A", Permissions: set}
}

func scopeFor(t *testing.T, actor access.Principal, action access.Action) rbac.Scope {
	t.Helper()
	scope, err := rbac.Gate{}.Authorize(actor, rbac.Target{Module: "settings", Feature: "users", Action: action})
	require.NoError(t, err)
	return scope
}

func TestPrincipalLoadsOnceAndCaches(t *testing.T) {
	repo := newMemRepo()
	u := repo.seed(User{Email: "sales@plant.test", Name: "Sales", Role: access.RoleSales, Unit: "Unit A", Permissions: access.Generate(access.RoleSales, "Unit A"), IsActive: true})
	svc, _ := newTestService(t, repo)

	p, err := svc.Principal(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleSales, p.Role)
	assert.True(t, p.Evaluator().CanPerformAction("sales", "myIndent", access.ActionAdd))

	_, err = svc.Principal(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)
}

func TestPrincipalInactiveOrMissing(t *testing.T) {
	repo := newMemRepo()
	u := repo.seed(User{Email: "gone@plant.test", Role: access.RoleSales, Unit: "Unit A", IsActive: false})
	svc, _ := newTestService(t, repo)

	_, err := svc.Principal(context.Background(), u.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Principal(context.Background(), 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProvisionUsesRoleDefaults(t *testing.T) {
	repo := newMemRepo()
	svc, audit := newTestService(t, repo)
	actor := superActor()

	u, err := svc.Provision(context.Background(), actor, scopeFor(t, actor, access.ActionAdd), ProvisionInput{
		Email: "rep@plant.test", Name: " Rep ", Password: "s3cretpass", Role: "sales", Unit: "Unit B",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rep", u.Name)
	assert.Equal(t, access.RoleSales, u.Role)
	assert.Equal(t, access.Generate(access.RoleSales, "Unit B"), u.Permissions)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "principal.provision", audit.logs[0].Action)

	authed, err := svc.Authenticate(context.Background(), "REP@plant.test", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, authed.ID)
	_, err = svc.Authenticate(context.Background(), "rep@plant.test", "wrongpass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestProvisionRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, newMemRepo())
	actor := superActor()
	scope := scopeFor(t, actor, access.ActionAdd)
	base := ProvisionInput{Email: "x@plant.test", Name: "X", Password: "s3cretpass", Role: "sales", Unit: "Unit A"}

	bad := base
	bad.Role = "root"
	_, err := svc.Provision(context.Background(), actor, scope, bad)
	assert.ErrorIs(t, err, ErrInvalidRole)

	bad = base
	bad.Unit = "Unit Z"
	_, err = svc.Provision(context.Background(), actor, scope, bad)
	assert.ErrorIs(t, err, ErrInvalidUnit)

	bad = base
	bad.Email = "not-an-email"
	_, err = svc.Provision(context.Background(), actor, scope, bad)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUnitHeadProvisionIsUnitScoped(t *testing.T) {
	svc, _ := newTestService(t, newMemRepo())
	actor := unitHeadActor()
	scope := scopeFor(t, actor, access.ActionAdd)

	_, err := svc.Provision(context.Background(), actor, scope, ProvisionInput{Email: "a@plant.test", Name: "A", Password: "s3cretpass", Role: "Packing", Unit: "Unit A"})
	require.NoError(t, err)

	_, err = svc.Provision(context.Background(), actor, scope, ProvisionInput{Email: "b@plant.test", Name: "B", Password: "s3cretpass", Role: "Packing", Unit: "Unit B"})
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)

	_, err = svc.Provision(context.Background(), actor, scope, ProvisionInput{Email: "c@plant.test", Name: "C", Password: "s3cretpass", Role: "Super User", Unit: "Unit A"})
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)
}

func TestNonManagerIsDenied(t *testing.T) {
	svc, _ := newTestService(t, newMemRepo())
	actor := access.Principal{ID: 5, Role: access.RoleAccounts, Unit: "Unit A", Permissions: unitHeadActor().Permissions}

	_, err := svc.List(context.Background(), actor, scopeFor(t, actor, access.ActionView))
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)
}

func TestListIsUnitScoped(t *testing.T) {
	repo := newMemRepo()
	repo.seed(User{Email: "a@plant.test", Role: access.RolePacking, Unit: "Unit A"})
	repo.seed(User{Email: "b@plant.test", Role: access.RolePacking, Unit: "Unit B"})
	svc, _ := newTestService(t, repo)

	head := unitHeadActor()
	users, err := svc.List(context.Background(), head, scopeFor(t, head, access.ActionView))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Unit A", users[0].Unit)

	super := superActor()
	users, err = svc.List(context.Background(), super, scopeFor(t, super, access.ActionView))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestReplacePermissionsPinsRoleAndInvalidatesCache(t *testing.T) {
	repo := newMemRepo()
	target := repo.seed(User{Email: "p@plant.test", Role: access.RoleProduction, Unit: "Unit A", Permissions: access.Generate(access.RoleProduction, "Unit A"), IsActive: true})
	svc, audit := newTestService(t, repo)
	ctx := context.Background()

	before, err := svc.Principal(ctx, target.ID)
	require.NoError(t, err)
	assert.Empty(t, before.Evaluator().AccessibleModules())

	edited, err := access.EnableModule(access.PermissionSet{}, access.ModuleManufacturing)
	require.NoError(t, err)
	edited, err = access.SetFeatureAction(edited, access.ModuleManufacturing, "allJobs", access.ActionView, true)
	require.NoError(t, err)
	edited.Role = access.SuperRoleToken
	edited.CanAccessAllUnits = true

	head := unitHeadActor()
	u, err := svc.ReplacePermissions(ctx, head, scopeFor(t, head, access.ActionEdit), target.ID, edited)
	require.NoError(t, err)
	assert.Equal(t, "production", u.Permissions.Role)
	assert.False(t, u.Permissions.CanAccessAllUnits)

	after, err := svc.Principal(ctx, target.ID)
	require.NoError(t, err)
	eval := after.Evaluator()
	assert.False(t, eval.IsSuper())
	assert.True(t, eval.CanPerformAction("manufacturing", "allJobs", access.ActionView))
	assert.False(t, eval.CanPerformAction("manufacturing", "allJobs", access.ActionEdit))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "principal.permissions.replace", audit.logs[0].Action)
	assert.Equal(t, []string{"manufacturing"}, audit.logs[0].Meta["after"])
}

func TestReplacePermissionsRejectsMalformedAndForeignUnit(t *testing.T) {
	repo := newMemRepo()
	other := repo.seed(User{Email: "o@plant.test", Role: access.RolePacking, Unit: "Unit B"})
	svc, _ := newTestService(t, repo)
	head := unitHeadActor()
	scope := scopeFor(t, head, access.ActionEdit)

	_, err := svc.ReplacePermissions(context.Background(), head, scope, other.ID, access.PermissionSet{Modules: []access.ModuleGrant{{Name: "warehouse"}}})
	assert.ErrorIs(t, err, access.ErrMalformedPermissionSet)

	_, err = svc.ReplacePermissions(context.Background(), head, scope, other.ID, access.PermissionSet{})
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)
	assert.Empty(t, repo.users[other.ID].Permissions.Modules)
}

func TestResetDefaults(t *testing.T) {
	repo := newMemRepo()
	target := repo.seed(User{Email: "s@plant.test", Role: access.RoleSales, Unit: "Unit A", Permissions: access.PermissionSet{Role: "sales"}, IsActive: true})
	svc, _ := newTestService(t, repo)
	actor := superActor()

	u, err := svc.ResetDefaults(context.Background(), actor, scopeFor(t, actor, access.ActionEdit), target.ID)
	require.NoError(t, err)
	assert.Equal(t, access.Generate(access.RoleSales, "Unit A"), u.Permissions)
	assert.Equal(t, u.Permissions, repo.users[target.ID].Permissions)
}

func TestUpdateProfile(t *testing.T) {
	repo := newMemRepo()
	u := repo.seed(User{Email: "me@plant.test", Name: "Old", Role: access.RoleDispatch, Unit: "Unit C", IsActive: true})
	svc, _ := newTestService(t, repo)

	got, err := svc.UpdateProfile(context.Background(), u.ID, ProfileInput{Name: "  New Name "})
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)

	_, err = svc.UpdateProfile(context.Background(), u.ID, ProfileInput{Name: " "})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

// pausingRepo blocks the first Get after it has read the row, until release
// is closed. The read is returned only if the caller's context survived.
type pausingRepo struct {
	*memRepo
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newPausingRepo(base *memRepo) *pausingRepo {
	return &pausingRepo{memRepo: base, read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingRepo) Get(ctx context.Context, id int64) (User, error) {
	u, err := p.memRepo.Get(ctx, id)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return User{}, ctxErr
	}
	return u, err
}

func TestRevokeDuringLoadIsNotServedFromCache(t *testing.T) {
	base := newMemRepo()
	sales := base.seed(User{Email: "rep@plant.test", Role: access.RoleSales, Unit: "Unit A", Permissions: access.Generate(access.RoleSales, "Unit A"), IsActive: true})
	repo := newPausingRepo(base)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	loaded := make(chan error, 1)
	go func() {
		_, err := svc.Principal(ctx, sales.ID)
		loaded <- err
	}()
	<-repo.read

	actor := superActor()
	_, err := svc.ReplacePermissions(ctx, actor, scopeFor(t, actor, access.ActionEdit), sales.ID, access.PermissionSet{Modules: []access.ModuleGrant{}})
	require.NoError(t, err)
	close(repo.release)
	require.NoError(t, <-loaded)

	p, err := svc.Principal(ctx, sales.ID)
	require.NoError(t, err)
	assert.False(t, p.Evaluator().CanPerformAction("sales", "myIndent", access.ActionAdd))
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	base := newMemRepo()
	u := base.seed(User{Email: "rep@plant.test", Role: access.RoleSales, Unit: "Unit A", Permissions: access.Generate(access.RoleSales, "Unit A"), IsActive: true})
	repo := newPausingRepo(base)
	svc, _ := newTestService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Principal(ctx, u.ID)
		first <- err
	}()
	<-repo.read
	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(repo.release)

	require.Eventually(t, func() bool {
		_, ok, _ := svc.cache.Get(context.Background(), u.ID)
		return ok
	}, time.Second, 5*time.Millisecond)
	p, err := svc.Principal(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	base.mu.Lock()
	defer base.mu.Unlock()
	assert.Equal(t, 1, base.gets)
}

func TestUnitHeadCannotWidenGrants(t *testing.T) {
	repo := newMemRepo()
	head := unitHeadActor()
	repo.users[head.ID] = User{ID: head.ID, Email: "head@plant.test", Role: access.RoleUnitHead, Unit: "Unit A", Permissions: head.Permissions, IsActive: true}
	target := repo.seed(User{Email: "p@plant.test", Role: access.RolePacking, Unit: "Unit A", IsActive: true})
	svc, _ := newTestService(t, repo)
	scope := scopeFor(t, head, access.ActionEdit)
	ctx := context.Background()

	_, err := svc.ReplacePermissions(ctx, head, scope, head.ID, head.Permissions)
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)

	system, err := access.EnableModule(access.PermissionSet{}, access.ModuleSettings)
	require.NoError(t, err)
	system, err = access.SetFeatureAction(system, access.ModuleSettings, "system", access.ActionAlter, true)
	require.NoError(t, err)
	_, err = svc.ReplacePermissions(ctx, head, scope, target.ID, system)
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)
	assert.Empty(t, repo.users[target.ID].Permissions.Modules)

	held, err := access.SetFeatureAction(system, access.ModuleSettings, "system", access.ActionAlter, false)
	require.NoError(t, err)
	held, err = access.SetFeatureAction(held, access.ModuleSettings, "users", access.ActionView, true)
	require.NoError(t, err)
	_, err = svc.ReplacePermissions(ctx, head, scope, target.ID, held)
	require.NoError(t, err)
}
