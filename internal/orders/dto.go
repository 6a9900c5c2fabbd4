package orders

import (
	"time"

	"github.com/plantdesk/plantdesk/internal/shared"
)

type ItemInput struct {
	ProductName string  `json:"productName" validate:"required,max=200"`
	ProductCode string  `json:"productCode" validate:"required,max=60"`
	Quantity    int     `json:"quantity" validate:"required,min=1"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

type CreateOrderRequest struct {
	CustomerID           int64       `json:"customerId" validate:"required,gt=0"`
	Items                []ItemInput `json:"items" validate:"required,min=1,dive"`
	ExpectedDeliveryDate time.Time   `json:"expectedDeliveryDate" validate:"required"`
	Unit                 string      `json:"unit" validate:"omitempty,max=80"`
	Notes                string      `json:"notes" validate:"max=2000"`
	Priority             Priority    `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-" validate:"max=128"`
}

type UpdateOrderRequest struct {
	Items                []ItemInput `json:"items" validate:"omitempty,min=1,dive"`
	ExpectedDeliveryDate *time.Time  `json:"expectedDeliveryDate"`
	AssignedTo           *int64      `json:"assignedTo" validate:"omitempty,gt=0"`
	Notes                *string     `json:"notes" validate:"omitempty,max=2000"`
	Priority             *Priority   `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
}

type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

type ListOrdersRequest struct {
	Unit   string
	Status Status
	Search string
	Limit  int
	Offset int
}

// ListFilter is what the repository sees: the unit is already resolved
// against the caller's scope.
type ListFilter struct {
	Unit     string
	AllUnits bool
	Status   Status
	Search   string
	Limit    int
	Offset   int
}

type ListResult struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`

	Pagination shared.Pagination `json:"pagination"`
}
