package orders

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
	"github.com/plantdesk/plantdesk/internal/shared"
)

type memRepo struct {
	mu     sync.Mutex
	orders map[int64]Order
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[int64]Order{}, nextID: 1}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) Get(ctx context.Context, id int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Order
	for _, o := range m.orders {
		if !filter.AllUnits && o.Unit != filter.Unit {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(o.OrderNumber), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if filter.Offset >= total {
		return []Order{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *memRepo) Create(ctx context.Context, o Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextID
	m.nextID++
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *memRepo) Update(ctx context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *memRepo) Stats(ctx context.Context, unit string, allUnits bool) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{ByStatus: map[Status]int{}}
	for _, o := range m.orders {
		if !allUnits && o.Unit != unit {
			continue
		}
		stats.ByStatus[o.Status]++
		stats.Total++
		stats.TotalAmount += o.TotalAmount
	}
	return stats, nil
}

func (m *memRepo) seed(unit string, status Status) Order {
	id, _ := m.Create(context.Background(), Order{OrderNumber: "ORD-SEED", Unit: unit, Status: status, Priority: PriorityMedium})
	return m.orders[id]
}

func editorPrincipal(unit string, allUnits bool) access.Principal {
	set, _ := access.EnableModule(access.PermissionSet{Role: "unit_head"}, access.ModuleOrders)
	for _, feature := range []string{"allOrders", "orderReport"} {
		for _, a := range access.Actions() {
			set, _ = access.SetFeatureAction(set, access.ModuleOrders, feature, a, true)
		}
	}
	set.CanAccessAllUnits = allUnits
	return access.Principal{ID: 9, Role: access.RoleUnitHead, Unit: unit, Permissions: set}
}

func scopeFor(t *testing.T, p access.Principal, action access.Action) rbac.Scope {
	t.Helper()
	scope, err := rbac.Gate{}.Authorize(p, rbac.Target{Module: "orders", Feature: "allOrders", Action: action})
	require.NoError(t, err)
	return scope
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func validCreate() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerID:           3,
		Items:                []ItemInput{{ProductName: "Panel", ProductCode: "P-1", Quantity: 4, UnitPrice: 12.5}, {ProductName: "Bolt", ProductCode: "B-2", Quantity: 10, UnitPrice: 0.5}},
		ExpectedDeliveryDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateForcesOwnUnit(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	p := editorPrincipal("Unit A", false)

	req := validCreate()
	req.Unit = "Unit B"
	o, err := svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	require.NoError(t, err)
	assert.Equal(t, "Unit A", o.Unit)
	assert.Equal(t, StatusNew, o.Status)
	assert.Equal(t, PriorityMedium, o.Priority)
	assert.InDelta(t, 55.0, o.TotalAmount, 1e-9)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
	assert.Equal(t, int64(9), o.CreatedBy)
}

func TestCreateAllUnitsHonoursRequestedUnit(t *testing.T) {
	svc := newTestService(newMemRepo())
	p := editorPrincipal("Main Office", true)

	req := validCreate()
	req.Unit = "Unit C"
	o, err := svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	require.NoError(t, err)
	assert.Equal(t, "Unit C", o.Unit)

	req.Unit = "Unit Q"
	_, err = svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemRepo())
	p := editorPrincipal("Unit A", false)

	req := validCreate()
	req.Items = nil
	_, err := svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	req = validCreate()
	req.Items[0].Quantity = 0
	_, err = svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

// A principal restricted to its unit is rejected on every operation that
// targets another unit's order, even though its feature rights allow it.
func TestForeignUnitOrdersAreRejected(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	foreign := repo.seed("Unit B", StatusNew)
	p := editorPrincipal("Unit A", false)
	ctx := context.Background()

	_, err := svc.Get(ctx, scopeFor(t, p, access.ActionView), foreign.ID)
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)

	notes := "changed"
	_, err = svc.Update(ctx, scopeFor(t, p, access.ActionEdit), foreign.ID, UpdateOrderRequest{Notes: &notes})
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)

	_, err = svc.ChangeStatus(ctx, scopeFor(t, p, access.ActionAlter), foreign.ID, StatusCompleted)
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)

	err = svc.Delete(ctx, scopeFor(t, p, access.ActionDelete), foreign.ID)
	assert.ErrorIs(t, err, access.ErrAuthorizationDenied)

	assert.Equal(t, foreign, repo.orders[foreign.ID])
}

func TestListAndStatsAreUnitScoped(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	repo.seed("Unit A", StatusNew)
	repo.seed("Unit A", StatusCompleted)
	repo.seed("Unit B", StatusNew)
	ctx := context.Background()

	local := editorPrincipal("Unit A", false)
	res, err := svc.List(ctx, scopeFor(t, local, access.ActionView), ListOrdersRequest{Unit: "Unit B"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	for _, o := range res.Orders {
		assert.Equal(t, "Unit A", o.Unit)
	}
	stats, err := svc.Stats(ctx, scopeFor(t, local, access.ActionView), "Unit B")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[StatusCompleted])

	global := editorPrincipal("Main Office", true)
	res, err = svc.List(ctx, scopeFor(t, global, access.ActionView), ListOrdersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	res, err = svc.List(ctx, scopeFor(t, global, access.ActionView), ListOrdersRequest{Unit: "Unit B"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	stats, err = svc.Stats(ctx, scopeFor(t, global, access.ActionView), "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)

	noUnit := editorPrincipal("", false)
	res, err = svc.List(ctx, scopeFor(t, noUnit, access.ActionView), ListOrdersRequest{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Orders)
}

func TestListRejectsUnknownStatusAndClampsLimit(t *testing.T) {
	svc := newTestService(newMemRepo())
	p := editorPrincipal("Unit A", false)

	_, err := svc.List(context.Background(), scopeFor(t, p, access.ActionView), ListOrdersRequest{Status: "Lost"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	res, err := svc.List(context.Background(), scopeFor(t, p, access.ActionView), ListOrdersRequest{Limit: 5000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, res.Limit)
	assert.Zero(t, res.Offset)
}

func TestChangeStatusStampsDispatch(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	o := repo.seed("Unit A", StatusCompleted)
	p := editorPrincipal("Unit A", false)

	got, err := svc.ChangeStatus(context.Background(), scopeFor(t, p, access.ActionAlter), o.ID, StatusDispatched)
	require.NoError(t, err)
	require.NotNil(t, got.ActualDeliveryDate)
	assert.Equal(t, svc.now().UTC(), *got.ActualDeliveryDate)

	_, err = svc.ChangeStatus(context.Background(), scopeFor(t, p, access.ActionAlter), o.ID, Status("Lost"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteRefusesLockedOrders(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	locked := repo.seed("Unit A", StatusInProgress)
	open := repo.seed("Unit A", StatusNew)
	p := editorPrincipal("Unit A", false)
	scope := scopeFor(t, p, access.ActionDelete)

	assert.ErrorIs(t, svc.Delete(context.Background(), scope, locked.ID), ErrOrderLocked)
	require.NoError(t, svc.Delete(context.Background(), scope, open.ID))
	assert.NotContains(t, repo.orders, open.ID)
	assert.ErrorIs(t, svc.Delete(context.Background(), scope, open.ID), httpx.ErrNotFound)
}

func TestUpdateRecomputesTotals(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	o := repo.seed("Unit A", StatusNew)
	p := editorPrincipal("Unit A", false)
	high := PriorityHigh

	got, err := svc.Update(context.Background(), scopeFor(t, p, access.ActionEdit), o.ID, UpdateOrderRequest{
		Items:    []ItemInput{{ProductName: "Frame", ProductCode: "F-9", Quantity: 2, UnitPrice: 100}},
		Priority: &high,
	})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, got.TotalAmount, 1e-9)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, "Unit A", got.Unit)
}

type keySpy struct {
	claimed  map[string]bool
	released []string
}

func (k *keySpy) Claim(_ context.Context, module string, principalID int64, key string) error {
	if k.claimed == nil {
		k.claimed = map[string]bool{}
	}
	id := module + "/" + key
	if k.claimed[id] {
		return shared.ErrIdempotencyConflict
	}
	k.claimed[id] = true
	return nil
}

func (k *keySpy) Release(_ context.Context, module string, principalID int64, key string) error {
	delete(k.claimed, module+"/"+key)
	k.released = append(k.released, key)
	return nil
}

func TestCreateHonoursIdempotencyKey(t *testing.T) {
	repo := newMemRepo()
	keys := &keySpy{}
	svc := NewService(repo, keys, nil)
	p := editorPrincipal("Unit A", false)

	req := validCreate()
	req.IdempotencyKey = "retry-1"
	_, err := svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), scopeFor(t, p, access.ActionAdd), req)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
	assert.Len(t, repo.orders, 1)
}
