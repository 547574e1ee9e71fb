package dash

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quickcourt/quickcourt/internal/api"
	"github.com/quickcourt/quickcourt/internal/guard"
	"github.com/quickcourt/quickcourt/internal/models"
	"github.com/quickcourt/quickcourt/internal/session"
)

type pageData struct {
	Title string
	State session.State
	Error string
	From  string
	Email string
	Roles []string
}

// LoginForm is the sign in form
type LoginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	From     string `form:"from"`
}

// SelectRoleForm is the role selection form
type SelectRoleForm struct {
	Role string `form:"role" binding:"required,oneof=player facility_owner"`
}

// safeRedirect returns from when it is a local path, otherwise ""
func safeRedirect(from string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return ""
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return from
}

// afterSignIn picks where a freshly signed in user lands
func afterSignIn(st session.State, from string) string {
	if st.ShowRoleModal {
		return selectRolePath
	}
	if target := safeRedirect(from); target != "" {
		return target
	}
	return guard.HomeFor(st.Role())
}

func loginRedirect(from string) string {
	return guard.LoginPath + "?from=" + url.QueryEscape(from)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "quickcourt-dash",
	})
}

// getSession returns the session snapshot. The raw token is never included.
func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessions.State())
}

func (s *Server) page(c *gin.Context) {
	route, _ := guard.GetRoute(c)
	st, _ := guard.GetState(c)

	title := route.Title
	if title == "" {
		title = route.Path
	}

	c.HTML(http.StatusOK, "page.html", pageData{Title: title, State: st})
}

func (s *Server) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", pageData{
		Title: "Sign in",
		State: s.sessions.State(),
		From:  safeRedirect(c.Query("from")),
	})
}

func (s *Server) renderLoginError(c *gin.Context, status int, form LoginForm, message string) {
	c.HTML(status, "login.html", pageData{
		Title: "Sign in",
		State: s.sessions.State(),
		Error: message,
		From:  safeRedirect(form.From),
		Email: form.Email,
	})
}

func (s *Server) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderLoginError(c, http.StatusBadRequest, form, "Enter a valid email and password")
		return
	}

	ctx := c.Request.Context()

	resp, err := s.auth.Login(ctx, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.renderLoginError(c, http.StatusUnauthorized, form, "Invalid email or password")
			return
		}
		s.logger.Error().Err(err).Msg("Login request failed")
		s.renderLoginError(c, http.StatusBadGateway, form, "Sign in failed, please try again")
		return
	}

	if err := s.sessions.Login(ctx, resp.Token, resp.User); err != nil {
		if !s.sessions.State().IsAuthenticated {
			s.logger.Error().Err(err).Msg("Failed to start session")
			s.renderLoginError(c, http.StatusBadGateway, form, "Sign in failed, please try again")
			return
		}
		s.logger.Warn().Err(err).Msg("Session started with errors")
	}

	c.Redirect(http.StatusSeeOther, afterSignIn(s.sessions.State(), form.From))
}

func (s *Server) logout(c *gin.Context) {
	if err := s.sessions.Logout(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear persisted session")
	}
	c.Redirect(http.StatusSeeOther, guard.LoginPath)
}

func (s *Server) renderSelectRole(c *gin.Context, status int, message string) {
	c.HTML(status, "select_role.html", pageData{
		Title: "Select your role",
		State: s.sessions.State(),
		Error: message,
		Roles: models.SelectableRoles,
	})
}

func (s *Server) selectRolePage(c *gin.Context) {
	st, _ := guard.GetState(c)
	if st.User != nil && !st.ShowRoleModal {
		c.Redirect(http.StatusSeeOther, guard.HomeFor(st.Role()))
		return
	}

	s.renderSelectRole(c, http.StatusOK, "")
}

func (s *Server) selectRole(c *gin.Context) {
	var form SelectRoleForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderSelectRole(c, http.StatusBadRequest, "Choose one of the listed roles")
		return
	}

	ctx := c.Request.Context()

	bearer, ok := s.sessions.Token()
	if !ok {
		c.Redirect(http.StatusSeeOther, loginRedirect(selectRolePath))
		return
	}

	user, err := s.auth.UpdateRole(ctx, bearer, form.Role)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			if err := s.sessions.Logout(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to clear persisted session")
			}
			c.Redirect(http.StatusSeeOther, loginRedirect(selectRolePath))
			return
		}
		s.logger.Error().Err(err).Str("role", form.Role).Msg("Failed to update role")
		s.renderSelectRole(c, http.StatusBadGateway, "Could not save your role, please try again")
		return
	}

	if err := s.sessions.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			c.Redirect(http.StatusSeeOther, loginRedirect(selectRolePath))
			return
		}
		s.logger.Warn().Err(err).Msg("Failed to persist updated profile")
	}

	c.Redirect(http.StatusSeeOther, guard.HomeFor(user.Role))
}
