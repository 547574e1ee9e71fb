package guard

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quickcourt/quickcourt/internal/models"
	"github.com/quickcourt/quickcourt/internal/session"
)

//go:embed routes.yaml
var defaultRoutes []byte

// Route declares the access rules of one page
type Route struct {
	Path                    string   `yaml:"path" validate:"required,startswith=/"`
	Title                   string   `yaml:"title"`
	RequireAuth             *bool    `yaml:"requireAuth"`
	RequiredRole            string   `yaml:"requiredRole" validate:"omitempty,oneof=admin facility_owner player"`
	AllowedRoles            []string `yaml:"allowedRoles" validate:"dive,oneof=admin facility_owner player"`
	AllowAuthenticatedUsers bool     `yaml:"allowAuthenticatedUsers"`
}

// RequiresAuth defaults to true when requireAuth is not declared
func (r Route) RequiresAuth() bool {
	return r.RequireAuth == nil || *r.RequireAuth
}

// Table is the set of guarded routes
type Table struct {
	Routes []Route `yaml:"routes" validate:"required,min=1,dive"`

	byPath map[string]int
}

// LoadRoutes reads a route table from path, or the built-in table when path is empty
func LoadRoutes(path string) (*Table, error) {
	data := defaultRoutes
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read route table: %w", err)
		}
	}

	return ParseRoutes(data)
}

// ParseRoutes decodes and validates a YAML route table
func ParseRoutes(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}

	if err := validator.New().Struct(&t); err != nil {
		return nil, fmt.Errorf("invalid route table: %w", err)
	}

	t.byPath = make(map[string]int, len(t.Routes))
	for i, r := range t.Routes {
		key := normalize(r.Path)
		if _, dup := t.byPath[key]; dup {
			return nil, fmt.Errorf("invalid route table: duplicate path %q", r.Path)
		}
		t.byPath[key] = i
	}

	if err := t.checkRedirectLoops(); err != nil {
		return nil, err
	}

	return &t, nil
}

// checkRedirectLoops rejects routes that would redirect a signed-in role back to themselves
func (t *Table) checkRedirectLoops() error {
	for _, r := range t.Routes {
		for _, role := range []string{models.RoleAdmin, models.RoleFacilityOwner, models.RolePlayer} {
			st := session.State{IsAuthenticated: true, User: &models.User{ID: "check", Role: role}}
			d := Decide(st, r, r.Path)
			if d.Outcome == Redirect && normalize(d.To) == normalize(r.Path) {
				return fmt.Errorf("invalid route table: %s redirects role %s to itself", r.Path, role)
			}
		}
	}
	return nil
}

// Match returns the route declared for path
func (t *Table) Match(path string) (Route, bool) {
	i, ok := t.byPath[normalize(path)]
	if !ok {
		return Route{}, false
	}
	return t.Routes[i], true
}

func normalize(path string) string {
	if path == "/" {
		return path
	}
	return strings.TrimRight(path, "/")
}
