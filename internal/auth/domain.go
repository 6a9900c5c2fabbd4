package auth

import (
	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/navigation"
)

// LoginRequest is the JSON body of a login attempt.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Account is the caller's identity as returned to the client.
type Account struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  access.Role `json:"role"`
	Unit  string      `json:"unit"`
}

// SessionView is delivered once per session: the stored permission document
// and the navigation model derived from it.
type SessionView struct {
	Account     Account              `json:"user"`
	CSRFToken   string               `json:"csrfToken,omitempty"`
	Permissions access.PermissionSet `json:"permissions"`
	Navigation  navigation.View      `json:"navigation"`
}
