package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
	"github.com/plantdesk/plantdesk/internal/shared"
)

var (
	ErrInvalidStatus = fmt.Errorf("orders: invalid status: %w", httpx.ErrValidation)
	ErrOrderLocked   = fmt.Errorf("orders: cannot delete an order that is in progress or completed: %w", httpx.ErrValidation)
	ErrUnitRequired  = fmt.Errorf("orders: unit required: %w", httpx.ErrValidation)
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Service applies order rules. Every method takes the scope the gate issued
// and keeps all reads and writes inside it.
type Service struct {
	repo      Repository
	keys      KeyClaimer
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
	newNumber func() string
}

// KeyClaimer reserves client idempotency keys.
type KeyClaimer interface {
	Claim(ctx context.Context, module string, principalID int64, key string) error
	Release(ctx context.Context, module string, principalID int64, key string) error
}

func NewService(repo Repository, keys KeyClaimer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		keys:      keys,
		logger:    logger,
		validator: validator.New(),
		now:       time.Now,
		newNumber: func() string {
			return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
		},
	}
}

func (s *Service) List(ctx context.Context, scope rbac.Scope, req ListOrdersRequest) (ListResult, error) {
	if req.Status != "" && !req.Status.Valid() {
		return ListResult{}, ErrInvalidStatus
	}
	filter := ListFilter{
		Status: req.Status,
		Search: strings.TrimSpace(req.Search),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if unit, scoped := scope.UnitFilter(); scoped {
		if unit == "" {
			return ListResult{Orders: []Order{}, Limit: filter.Limit, Offset: filter.Offset,
				Pagination: shared.PaginationFromOffset(filter.Limit, filter.Offset, 0)}, nil
		}
		filter.Unit = unit
	} else if req.Unit != "" {
		filter.Unit = req.Unit
	} else {
		filter.AllUnits = true
	}
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Orders:     orders,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		Pagination: shared.PaginationFromOffset(filter.Limit, filter.Offset, total),
	}, nil
}

func (s *Service) Get(ctx context.Context, scope rbac.Scope, id int64) (Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := scope.Check(o.Unit); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Service) Create(ctx context.Context, scope rbac.Scope, req CreateOrderRequest) (Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return Order{}, fmt.Errorf("orders: %w: %s", httpx.ErrValidation, err.Error())
	}
	unit := scope.AssignUnit(strings.TrimSpace(req.Unit))
	if unit == "" {
		return Order{}, ErrUnitRequired
	}
	if !slices.Contains(access.Units(), unit) {
		return Order{}, fmt.Errorf("orders: unknown unit %q: %w", unit, httpx.ErrValidation)
	}
	if err := scope.Check(unit); err != nil {
		return Order{}, err
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	items, total := buildItems(req.Items)
	o := Order{
		OrderNumber:          s.newNumber(),
		CustomerID:           req.CustomerID,
		Items:                items,
		TotalAmount:          total,
		Status:               StatusNew,
		Priority:             priority,
		OrderDate:            s.now().UTC(),
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Unit:                 unit,
		Notes:                strings.TrimSpace(req.Notes),
		CreatedBy:            scope.PrincipalID,
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && s.keys != nil {
		if err := s.keys.Claim(ctx, module, scope.PrincipalID, key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Order{}, fmt.Errorf("orders: request %q already processed: %w", key, httpx.ErrDuplicate)
			}
			return Order{}, err
		}
	}
	id, err := s.repo.Create(ctx, o)
	if err != nil {
		if key != "" && s.keys != nil {
			if relErr := s.keys.Release(ctx, module, scope.PrincipalID, key); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		return Order{}, err
	}
	o.ID = id
	s.logger.Info("order created", slog.Int64("order_id", id), slog.String("unit", unit), slog.Int64("principal_id", scope.PrincipalID))
	return o, nil
}

func (s *Service) Update(ctx context.Context, scope rbac.Scope, id int64, req UpdateOrderRequest) (Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return Order{}, fmt.Errorf("orders: %w: %s", httpx.ErrValidation, err.Error())
	}
	return s.mutate(ctx, scope, id, func(o *Order) error {
		if len(req.Items) > 0 {
			o.Items, o.TotalAmount = buildItems(req.Items)
		}
		if req.ExpectedDeliveryDate != nil {
			o.ExpectedDeliveryDate = *req.ExpectedDeliveryDate
		}
		if req.AssignedTo != nil {
			o.AssignedTo = req.AssignedTo
		}
		if req.Notes != nil {
			o.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.Priority != nil {
			o.Priority = *req.Priority
		}
		return nil
	})
}

// ChangeStatus moves an order to status. Dispatching stamps the actual
// delivery date.
func (s *Service) ChangeStatus(ctx context.Context, scope rbac.Scope, id int64, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	return s.mutate(ctx, scope, id, func(o *Order) error {
		o.Status = status
		if status == StatusDispatched {
			now := s.now().UTC()
			o.ActualDeliveryDate = &now
		}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, scope rbac.Scope, id int64, apply func(*Order) error) (Order, error) {
	var out Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		o, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := scope.Check(o.Unit); err != nil {
			return err
		}
		if err := apply(&o); err != nil {
			return err
		}
		if err := repo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, scope rbac.Scope, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		o, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := scope.Check(o.Unit); err != nil {
			return err
		}
		if o.Status.Locked() {
			return ErrOrderLocked
		}
		return repo.Delete(ctx, id)
	})
}

// Stats aggregates the orders visible in scope; all-unit callers may narrow
// to one unit.
func (s *Service) Stats(ctx context.Context, scope rbac.Scope, unit string) (Stats, error) {
	if own, scoped := scope.UnitFilter(); scoped {
		if own == "" {
			return Stats{ByStatus: map[Status]int{}}, nil
		}
		return s.repo.Stats(ctx, own, false)
	}
	if unit != "" {
		return s.repo.Stats(ctx, unit, false)
	}
	return s.repo.Stats(ctx, "", true)
}

func buildItems(in []ItemInput) ([]Item, float64) {
	items := make([]Item, 0, len(in))
	var total float64
	for _, it := range in {
		line := float64(it.Quantity) * it.UnitPrice
		total += line
		items = append(items, Item{
			ProductName: strings.TrimSpace(it.ProductName),
			ProductCode: strings.TrimSpace(it.ProductCode),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  line,
		})
	}
	return items, total
}
