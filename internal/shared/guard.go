package shared

import (
	"fmt"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
)

// GuardError maps an engine decision to the transport-level sentinel the
// handlers respond with. Allowed decisions map to nil. Invisible records map
// to ErrNotFound so their existence is never confirmed; cross-tenant
// references map to ErrForbidden, never to not-found.
func GuardError(d authz.Decision) error {
	if d.Allow {
		return nil
	}
	switch d.Reason {
	case authz.ReasonUnauthenticated:
		return httpx.ErrUnauthorized
	case authz.ReasonRateLimited:
		return httpx.ErrRateLimited
	case authz.ReasonNotVisible:
		return httpx.ErrNotFound
	case authz.ReasonTenantMismatch, authz.ReasonNoPermission, authz.ReasonCycleLocked:
		return httpx.ErrForbidden
	}
	return fmt.Errorf("%w: %s", httpx.ErrForbidden, d.Reason)
}
