package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist for the tenant.
	ErrNotFound = errors.New("not found")
	// ErrTenantMissing indicates the request carried no resolved tenant.
	ErrTenantMissing = errors.New("tenant not resolved")
)
