package access

import (
	"errors"
	"strings"
)

var (
	// ErrAuthorizationDenied is matched by every *DeniedError.
	ErrAuthorizationDenied = errors.New("access: authorization denied")
	// ErrMalformedPermissionSet is matched by every *MalformedError.
	ErrMalformedPermissionSet = errors.New("access: malformed permission set")
	// ErrUnknownModule indicates a module name outside the catalog.
	ErrUnknownModule = errors.New("access: unknown module")
	// ErrUnknownAction indicates an action outside view/add/edit/delete/alter.
	ErrUnknownAction = errors.New("access: unknown action")
)

// DeniedMessage is the only text a denied caller is shown.
const DeniedMessage = "you do not have permission to perform this action"

// DeniedError is the structured rejection produced by the authorization gate.
// Reason is for logs only and must not be rendered to the caller.
type DeniedError struct {
	Module  string
	Feature string
	Action  string
	Reason  Reason
}

func (e *DeniedError) Error() string {
	return "access: denied " + e.Module + "/" + e.Feature + "/" + e.Action
}

// Is makes errors.Is(err, ErrAuthorizationDenied) hold.
func (e *DeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

// MalformedError lists the shape problems found in a permission document.
type MalformedError struct {
	Issues []string
}

func (e *MalformedError) Error() string {
	return "access: malformed permission set: " + strings.Join(e.Issues, "; ")
}

// Is makes errors.Is(err, ErrMalformedPermissionSet) hold.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedPermissionSet
}
