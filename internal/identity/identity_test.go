package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/identity"
)

// fakeAppwrite serves a tiny subset of the Appwrite account API.
func fakeAppwrite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var userLookups atomic.Int32
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	unauthorized := func(w http.ResponseWriter) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message": "User (role: guests) missing scope (account)",
			"code":    401,
			"type":    "general_unauthorized_scope",
		})
	}

	mux.HandleFunc("POST /account", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "unique()", body["userId"])
		if body["email"] == "taken@example.com" {
			writeJSON(w, http.StatusConflict, map[string]any{"message": "A user with the same id, email, or phone already exists", "code": 409})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"$id": "u-new", "name": body["name"], "email": body["email"]})
	})

	mux.HandleFunc("POST /account/sessions/email", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct horse" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials", "code": 401, "type": "user_invalid_credentials"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"$id":    "s1",
			"userId": "u1",
			"secret": "sekret",
			"expire": "2030-01-01T00:00:00.000+00:00",
		})
	})

	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proj", r.Header.Get("X-Appwrite-Project"))
		if r.Header.Get("X-Appwrite-Session") != "sekret" {
			unauthorized(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"$id": "u1", "name": "Ada", "email": "ada@example.com"})
	})

	mux.HandleFunc("DELETE /account/sessions/current", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Appwrite-Session") != "sekret" {
			unauthorized(w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		userLookups.Add(1)
		if r.Header.Get("X-Appwrite-Key") != "key" {
			unauthorized(w)
			return
		}
		switch id := r.PathValue("id"); id {
		case "u1":
			writeJSON(w, http.StatusOK, map[string]any{"$id": id, "name": "Ada", "email": "ada@example.com"})
		case "u2":
			writeJSON(w, http.StatusOK, map[string]any{"$id": id, "name": "", "email": "blaise@example.com"})
		case "u3":
			writeJSON(w, http.StatusOK, map[string]any{"$id": id})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "User with the requested ID could not be found.", "code": 404})
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, &userLookups
}

func newClient(srv *httptest.Server) *identity.Client {
	return identity.NewClient(identity.Config{
		Endpoint: srv.URL + "/",
		Project:  "proj",
		APIKey:   "key",
	})
}

func TestClient_Login(t *testing.T) {
	srv, _ := fakeAppwrite(t)
	c := newClient(srv)
	ctx := context.Background()

	ss, err := c.Login(ctx, identity.LoginRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "sekret", ss.Secret)
	assert.Equal(t, "u1", ss.UserID)
	assert.Equal(t, 2030, ss.ExpireTime.Year())

	_, err = c.Login(ctx, identity.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	require.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
	assert.Equal(t, errors.ReasonAuthentication, errors.Convert(err).Reason)
}

func TestClient_CurrentUser(t *testing.T) {
	srv, _ := fakeAppwrite(t)
	c := newClient(srv)
	ctx := context.Background()

	u, err := c.CurrentUser(ctx, "sekret")
	require.NoError(t, err)
	assert.Equal(t, &domain.User{UserID: "u1", Name: "Ada", Email: "ada@example.com"}, u)

	for _, secret := range []string{"", "expired"} {
		_, err = c.CurrentUser(ctx, secret)
		assert.True(t, errors.Is(err, errors.CodeUnauthenticated), "secret %q: got %v", secret, err)
	}

	require.NoError(t, c.Logout(ctx, "sekret"))
	assert.True(t, errors.Is(c.Logout(ctx, "expired"), errors.CodeUnauthenticated))
}

func TestClient_CreateAccount(t *testing.T) {
	srv, _ := fakeAppwrite(t)
	c := newClient(srv)
	ctx := context.Background()

	u, err := c.CreateAccount(ctx, identity.CreateAccountRequest{Email: "new@example.com", Password: "pw", Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, "u-new", u.UserID)

	_, err = c.CreateAccount(ctx, identity.CreateAccountRequest{Email: "taken@example.com", Password: "pw"})
	assert.True(t, errors.Is(err, errors.CodeAlreadyExists), "got %v", err)

	_, err = c.CreateAccount(ctx, identity.CreateAccountRequest{Password: "pw"})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
}

func TestClient_Unavailable(t *testing.T) {
	srv, _ := fakeAppwrite(t)
	c := newClient(srv)
	srv.Close()

	_, err := c.GetUser(context.Background(), "u1")
	assert.True(t, errors.Is(err, errors.CodeUnavailable), "got %v", err)
}

func TestDirectory_DisplayName(t *testing.T) {
	srv, lookups := fakeAppwrite(t)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})

	d := identity.NewDirectory(identity.DirectoryConfig{
		Users:  newClient(srv),
		Redis:  rc,
		Prefix: "test",
		TTL:    time.Minute,
	})
	ctx := context.Background()

	tests := map[string]struct {
		id   string
		want string
	}{
		"name":                     {id: "u1", want: "Ada"},
		"email when name is blank": {id: "u2", want: "blaise@example.com"},
		"id when both are blank":   {id: "u3", want: "u3"},
		"id when lookup fails":     {id: "ghost", want: "ghost"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.DisplayName(ctx, tt.id))
		})
	}

	before := lookups.Load()
	assert.Equal(t, "Ada", d.DisplayName(ctx, "u1"))
	assert.Equal(t, before, lookups.Load(), "resolved names are cached")

	assert.Equal(t, "ghost", d.DisplayName(ctx, "ghost"))
	assert.Equal(t, before+1, lookups.Load(), "failed lookups are not cached")

	rs.FastForward(2 * time.Minute)
	assert.Equal(t, "Ada", d.DisplayName(ctx, "u1"))
	assert.Equal(t, before+2, lookups.Load(), "cached names expire")
}
