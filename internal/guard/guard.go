package guard

import (
	"slices"

	"github.com/quickcourt/quickcourt/internal/models"
	"github.com/quickcourt/quickcourt/internal/session"
)

const LoginPath = "/login"

// Outcome is the terminal state of a guard decision
type Outcome int

const (
	Render Outcome = iota
	Loading
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "render"
	}
}

// Decision is the result of guarding one request
type Decision struct {
	Outcome Outcome
	// To is the redirect target
	To string
	// From is the location to return to after signing in. Only set for
	// redirects to the login page.
	From string
}

// HomeFor returns the default screen for a role
func HomeFor(role string) string {
	switch role {
	case models.RoleAdmin:
		return "/admin"
	case models.RoleFacilityOwner:
		return "/facility-owner-dashboard"
	default:
		return "/"
	}
}

// Decide applies the route's access rules to the session. location is the
// attempted location, remembered when the visitor is sent to sign in.
func Decide(st session.State, route Route, location string) Decision {
	if st.IsLoading {
		return Decision{Outcome: Loading}
	}

	if route.RequiresAuth() {
		if !st.IsAuthenticated {
			return Decision{Outcome: Redirect, To: LoginPath, From: location}
		}
		if !route.Permits(st.Role()) {
			return Decision{Outcome: Redirect, To: HomeFor(st.Role())}
		}
		return Decision{Outcome: Render}
	}

	if st.IsAuthenticated && !route.AllowAuthenticatedUsers {
		return Decision{Outcome: Redirect, To: HomeFor(st.Role())}
	}

	return Decision{Outcome: Render}
}

// Permits reports whether role satisfies the route's requiredRole and allowedRoles
func (r Route) Permits(role string) bool {
	if r.RequiredRole != "" && role != r.RequiredRole {
		return false
	}
	if len(r.AllowedRoles) > 0 && !slices.Contains(r.AllowedRoles, role) {
		return false
	}
	return true
}
