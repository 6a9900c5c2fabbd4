package principals

import (
	"time"

	"github.com/plantdesk/plantdesk/internal/access"
)

// User is a principal record together with its stored permission document.
type User struct {
	ID          int64                `json:"id"`
	Email       string               `json:"email"`
	Name        string               `json:"name"`
	Role        access.Role          `json:"role"`
	Unit        string               `json:"unit"`
	Permissions access.PermissionSet `json:"permissions"`
	IsActive    bool                 `json:"isActive"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// Principal projects the fields the permission engine reads.
func (u User) Principal() access.Principal {
	return access.Principal{ID: u.ID, Role: u.Role, Unit: u.Unit, Permissions: u.Permissions}
}

// Summary is the list representation; it omits the permission document.
type Summary struct {
	ID       int64       `json:"id"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     access.Role `json:"role"`
	Unit     string      `json:"unit"`
	IsActive bool        `json:"isActive"`
}

// ProvisionInput carries the fields of a new principal.
type ProvisionInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
	Unit     string `json:"unit" validate:"required,max=80"`
}

// ProfileInput is the self-service profile update.
type ProfileInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

// ListFilter narrows user listings. An empty Unit with AllUnits false matches
// nothing.
type ListFilter struct {
	Unit     string
	AllUnits bool
}
