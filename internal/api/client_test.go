package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quickcourt/quickcourt/internal/api"
)

// mockAPIServer serves the auth endpoints for a single known token
func mockAPIServer(t *testing.T, validToken string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Email != "player@example.com" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"token": validToken,
				"user":  map[string]any{"id": "u1", "email": req.Email, "role": "player"},
			},
		})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+validToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("GET /api/auth/me", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"u1","email":"player@example.com","role":"player","fullName":"Pat Player"}}`))
	}))

	mux.HandleFunc("POST /api/auth/refresh-token", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"token":"fresh-token"}}`))
	}))

	mux.HandleFunc("PATCH /api/auth/role", authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Role string `json:"role"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "u1", "email": "player@example.com", "role": body.Role},
		})
	}))

	return httptest.NewServer(mux)
}

func TestClient_Login(t *testing.T) {
	srv := mockAPIServer(t, "tok")
	defer srv.Close()

	c := api.New(srv.URL + "/api/")
	require.Equal(t, srv.URL+"/api", c.BaseURL())

	resp, err := c.Login(context.Background(), "player@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok", resp.Token)
	require.Equal(t, "player", resp.User.Role)

	_, err = c.Login(context.Background(), "player@example.com", "wrong")
	require.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestClient_CurrentUser(t *testing.T) {
	srv := mockAPIServer(t, "tok")
	defer srv.Close()

	c := api.New(srv.URL + "/api")

	user, err := c.CurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "Pat Player", user.DisplayName())

	_, err = c.CurrentUser(context.Background(), "stale")
	require.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestClient_RefreshToken(t *testing.T) {
	srv := mockAPIServer(t, "tok")
	defer srv.Close()

	c := api.New(srv.URL + "/api")

	fresh, err := c.RefreshToken(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "fresh-token", fresh)
}

func TestClient_UpdateRole(t *testing.T) {
	srv := mockAPIServer(t, "tok")
	defer srv.Close()

	c := api.New(srv.URL + "/api")

	user, err := c.UpdateRole(context.Background(), "tok", "facility_owner")
	require.NoError(t, err)
	require.Equal(t, "facility_owner", user.Role)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom\n"))
	}))
	defer srv.Close()

	_, err := api.New(srv.URL).RefreshToken(context.Background(), "tok")
	require.Error(t, err)
	require.NotErrorIs(t, err, api.ErrUnauthorized)

	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Equal(t, "boom", statusErr.Body)
}

func TestClient_RejectsInvalidUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"email":"not-an-email"}}`))
	}))
	defer srv.Close()

	_, err := api.New(srv.URL).CurrentUser(context.Background(), "tok")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid user in response")
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := mockAPIServer(t, "tok")
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := api.New(srv.URL+"/api").CurrentUser(ctx, "tok")
	require.ErrorIs(t, err, context.Canceled)
}
