package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	user, pass string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, creds Credentials) (*Principal, error) {
	if creds.Username == s.user && creds.Password == s.pass {
		return &Principal{ID: creds.Username}, nil
	}
	return nil, &Error{Type: ErrInvalidCredentials, Message: "invalid username or password"}
}

func TestMiddleware(t *testing.T) {
	var gotPrincipal *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal = GetPrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := Middleware(&stubAuthenticator{user: "alice", pass: "secret"}, "testrealm")(next)

	tests := []struct {
		name          string
		path          string
		setAuth       bool
		user, pass    string
		header        string
		wantStatus    int
		wantPrincipal string
	}{
		{
			name:       "missing credentials",
			path:       "/tasks",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			path:       "/tasks",
			header:     "Bearer token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad base64",
			path:       "/tasks",
			header:     "Basic !!!",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong password",
			path:       "/tasks",
			setAuth:    true,
			user:       "alice",
			pass:       "nope",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:          "valid credentials",
			path:          "/tasks",
			setAuth:       true,
			user:          "alice",
			pass:          "secret",
			wantStatus:    http.StatusOK,
			wantPrincipal: "alice",
		},
		{
			name:       "healthz bypasses auth",
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPrincipal = nil

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if rec.Code == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="testrealm"`, rec.Header().Get("WWW-Authenticate"))
			}
			if tt.wantPrincipal != "" {
				require.NotNil(t, gotPrincipal)
				assert.Equal(t, tt.wantPrincipal, gotPrincipal.ID)
			}
		})
	}
}

func TestGetPrincipalFromContext(t *testing.T) {
	assert.Nil(t, GetPrincipalFromContext(context.Background()))

	ctx := context.WithValue(context.Background(), PrincipalContextKey, &Principal{ID: "alice"})
	p := GetPrincipalFromContext(ctx)
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.ID)
}
