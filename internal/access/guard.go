package access

import (
	"strings"

	"github.com/cutroom/floor-service/internal/models"
)

// Default landing pages
const (
	LoginPath            = "/login"
	SpreaderHomePath     = "/spreader/view"
	CutterHomePath       = "/cutter/view"
	DefaultDashboardPath = "/dashboard/default"
)

// DecisionKind is the outcome of a route check
type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
	// RenderError is an inline error state for a logged-in user without a role
	RenderError
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case RenderError:
		return "error"
	}
	return "unknown"
}

// Snapshot is the part of the session the guard looks at
type Snapshot struct {
	IsLoggedIn bool
	Role       models.UserRole
}

// Decision tells the caller whether to render the page or go elsewhere
type Decision struct {
	Kind     DecisionKind
	Redirect string
	Message  string
}

// Decide maps a session and a requested path to a routing decision.
// It has no side effects and the same inputs always give the same result.
func Decide(session Snapshot, path string, allowedRoles []models.UserRole) Decision {
	if !session.IsLoggedIn {
		return Decision{Kind: Redirect, Redirect: LoginPath}
	}

	if session.Role == "" {
		return Decision{Kind: RenderError, Message: "user role is missing"}
	}

	switch session.Role {
	case models.RoleSpreader:
		if !strings.HasPrefix(path, "/spreader") {
			return Decision{Kind: Redirect, Redirect: SpreaderHomePath}
		}
	case models.RoleCutter:
		if !strings.HasPrefix(path, "/cutter") {
			return Decision{Kind: Redirect, Redirect: CutterHomePath}
		}
	}

	if len(allowedRoles) > 0 && !RoleAllowed(session.Role, allowedRoles) {
		return Decision{Kind: Redirect, Redirect: HomePath(session.Role)}
	}

	return Decision{Kind: Allow}
}

// RoleAllowed reports whether role may access something restricted to
// allowed. Super roles are always allowed.
func RoleAllowed(role models.UserRole, allowed []models.UserRole) bool {
	if models.IsSuperRole(role) {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// HomePath is the page a role lands on when it is sent away
func HomePath(role models.UserRole) string {
	switch role {
	case models.RoleSpreader:
		return SpreaderHomePath
	case models.RoleCutter:
		return CutterHomePath
	}
	return DefaultDashboardPath
}
