// Package access holds the permission model shared by server-side enforcement
// and client-side visibility: the module catalog, the role/action enumerations,
// the default permission generator and the evaluator.
//
// Every query is total. Missing or malformed data resolves to denial.
package access
