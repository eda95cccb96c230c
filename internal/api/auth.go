package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/StageEngine/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Auth holds the basic-auth credentials of both roles. Without admin
// credentials every request is treated as admin.
type Auth struct {
	admin    config.Credentials
	operator config.Credentials
}

// NewAuth builds an Auth from explicit credentials.
func NewAuth(admin, operator config.Credentials) *Auth {
	return &Auth{admin: admin, operator: operator}
}

// LoadAuth reads STAGE_ADMIN_{USER,PASS} and STAGE_OPERATOR_{USER,PASS},
// each honouring the *_FILE convention.
func LoadAuth() (*Auth, error) {
	admin, err := config.ResolveCredentials("STAGE_ADMIN")
	if err != nil {
		return nil, err
	}
	operator, err := config.ResolveCredentials("STAGE_OPERATOR")
	if err != nil {
		return nil, err
	}
	return NewAuth(admin, operator), nil
}

// Enabled returns true if authentication is configured.
func (a *Auth) Enabled() bool {
	return a != nil && a.admin.Set()
}

// authenticate checks basic auth credentials and returns the role if valid.
// Returns empty string if credentials are invalid.
func (a *Auth) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if secureCompare(user, a.admin.User) && secureCompare(pass, a.admin.Pass) {
		return RoleAdmin
	}
	if a.operator.Set() && secureCompare(user, a.operator.User) && secureCompare(pass, a.operator.Pass) {
		return RoleOperator
	}
	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Stage Engine"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole is middleware admitting only the listed roles.
func (a *Auth) RequireRole(allowedRoles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := a.authenticate(r)
			if role == "" {
				requireAuth(w)
				return
			}
			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// RequireAnyRole admits admin or operator.
func (a *Auth) RequireAnyRole() func(http.Handler) http.Handler {
	return a.RequireRole(RoleAdmin, RoleOperator)
}

// RequireAdmin admits admin only.
func (a *Auth) RequireAdmin() func(http.Handler) http.Handler {
	return a.RequireRole(RoleAdmin)
}
