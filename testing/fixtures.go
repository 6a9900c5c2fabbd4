// Package testing holds fixtures shared by package tests. Importing it puts
// the binaries' startup code into test mode.
package testing

import (
	"os"

	"github.com/plantdesk/plantdesk/internal/access"
)

const testModeEnv = "PLANTDESK_TEST_MODE"

func init() {
	_ = os.Setenv(testModeEnv, "1")
}

// Principal returns a principal carrying the generated defaults for role.
func Principal(id int64, role access.Role, unit string) access.Principal {
	return access.Principal{ID: id, Role: role, Unit: unit, Permissions: access.Generate(role, unit)}
}
