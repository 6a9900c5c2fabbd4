package orders

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusDispatched Status = "Dispatched"
	StatusCancelled  Status = "Cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusDispatched, StatusCancelled:
		return true
	}
	return false
}

// Locked reports whether an order in this status can no longer be deleted.
func (s Status) Locked() bool {
	return s == StatusInProgress || s == StatusCompleted || s == StatusDispatched
}

// Priority ranks orders for production planning.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Order is a customer order owned by a unit.
type Order struct {
	ID                   int64      `json:"id"`
	OrderNumber          string     `json:"orderNumber"`
	CustomerID           int64      `json:"customerId"`
	Items                []Item     `json:"items"`
	TotalAmount          float64    `json:"totalAmount"`
	Status               Status     `json:"status"`
	Priority             Priority   `json:"priority"`
	OrderDate            time.Time  `json:"orderDate"`
	ExpectedDeliveryDate time.Time  `json:"expectedDeliveryDate"`
	ActualDeliveryDate   *time.Time `json:"actualDeliveryDate,omitempty"`
	Unit                 string     `json:"unit"`
	AssignedTo           *int64     `json:"assignedTo,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	CreatedBy            int64      `json:"createdBy"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Item is one order line.
type Item struct {
	ProductName string  `json:"productName"`
	ProductCode string  `json:"productCode"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
}

// Stats summarises orders by status.
type Stats struct {
	Total       int            `json:"total"`
	TotalAmount float64        `json:"totalAmount"`
	ByStatus    map[Status]int `json:"byStatus"`
}
