package middleware

import (
	"net/http"

	"github.com/iho/gledger/internal/domain"
)

// DefaultTenantHeader carries the tenant when auth is disabled.
const DefaultTenantHeader = "X-Tenant-ID"

// Tenant resolves the tenant of a request. The token claim wins; a header naming a
// different tenant is rejected.
func Tenant(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultTenantHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get(header)

			if p, ok := domain.PrincipalFromContext(r.Context()); ok {
				if tenant != "" && tenant != p.TenantID {
					writeError(w, http.StatusForbidden, "forbidden", domain.ErrTenantMismatch.Error())
					return
				}
				tenant = p.TenantID
			}

			if err := domain.ValidateTenantID(tenant); err != nil {
				writeError(w, http.StatusBadRequest, "missing tenant", err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.WithTenant(r.Context(), tenant)))
		})
	}
}
