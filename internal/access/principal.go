package access

// Principal is the slice of a user record the engine reads.
type Principal struct {
	ID          int64         `json:"id"`
	Role        Role          `json:"role"`
	Unit        string        `json:"unit"`
	Permissions PermissionSet `json:"permissions"`
}

// Evaluator compiles the principal's permissions.
func (p Principal) Evaluator() Evaluator {
	return Evaluate(p.Role, p.Permissions)
}
