package guard

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quickcourt/quickcourt/internal/session"
)

const (
	stateKey = "session_state"
	routeKey = "route"

	// loadingRetryAfter is the Retry-After hint, in seconds, while the session initializes
	loadingRetryAfter = "1"
)

// StateSource reports the current session state
type StateSource interface {
	State() session.State
}

func setState(c *gin.Context, st session.State) {
	c.Set(stateKey, st)
}

// GetState returns the session state the guard evaluated for this request
func GetState(c *gin.Context) (session.State, bool) {
	v, exists := c.Get(stateKey)
	if !exists {
		return session.State{}, false
	}

	st, ok := v.(session.State)
	return st, ok
}

// GetRoute returns the route the guard matched for this request
func GetRoute(c *gin.Context) (Route, bool) {
	v, exists := c.Get(routeKey)
	if !exists {
		return Route{}, false
	}

	r, ok := v.(Route)
	return r, ok
}

// Middleware guards a single route
func Middleware(sessions StateSource, route Route, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := sessions.State()
		d := Decide(st, route, c.Request.URL.RequestURI())

		switch d.Outcome {
		case Loading:
			c.Header("Retry-After", loadingRetryAfter)
			c.String(http.StatusServiceUnavailable, "Loading...")
			c.Abort()
			return
		case Redirect:
			target := d.To
			if d.From != "" {
				target += "?from=" + url.QueryEscape(d.From)
			}
			log.Debug().
				Str("path", route.Path).
				Str("role", st.Role()).
				Str("to", target).
				Msg("Route guard redirect")
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}

		setState(c, st)
		c.Set(routeKey, route)
		c.Next()
	}
}

// Register mounts every route of the table as a guarded GET. Routes without
// an entry in handlers are served by fallback.
func (t *Table) Register(r gin.IRoutes, sessions StateSource, log zerolog.Logger, handlers map[string]gin.HandlerFunc, fallback gin.HandlerFunc) {
	for _, route := range t.Routes {
		h, ok := handlers[route.Path]
		if !ok {
			h = fallback
		}
		r.GET(route.Path, Middleware(sessions, route, log), h)
	}
}
