package middleware

import (
	"net"
	"net/http"
	"strings"

	goSignup "github.com/MrEthical07/goSignup"
)

// TenantHeader carries the tenant ID when ClientContext is configured to
// read it.
const TenantHeader = "X-Tenant-ID"

// ClientContext stores the request's client IP and, when readTenant is set,
// the tenant from TenantHeader in the request context.
func ClientContext(readTenant bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goSignup.WithClientIP(r.Context(), clientIP(r.RemoteAddr))
			if readTenant {
				if tenant := strings.TrimSpace(r.Header.Get(TenantHeader)); tenant != "" && validTenant(tenant) {
					ctx = goSignup.WithTenantID(ctx, tenant)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return host
}

// validTenant keeps tenant IDs usable inside Redis keys.
func validTenant(tenant string) bool {
	if len(tenant) > 64 {
		return false
	}
	return !strings.ContainsAny(tenant, ": \t\r\n")
}
