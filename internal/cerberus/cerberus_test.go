package cerberus_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/cerberus"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
)

type stubRenewer struct {
	token   string
	expires time.Time
	err     error
	calls   int
}

func (s *stubRenewer) Renew(_ context.Context, _ string) (string, time.Time, error) {
	s.calls++
	return s.token, s.expires, s.err
}

func (s *stubRenewer) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	session.SetCookie(w, token, expires, time.Until(expires))
}

func newState(t *testing.T, opts security.Options) *security.State {
	t.Helper()
	state, err := security.NewState(opts)
	require.NoError(t, err)
	return state
}

func setupRouter(state *security.State, opts cerberus.Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cerberus.New(state, opts).Middleware())
	r.GET("/*path", func(c *gin.Context) { c.String(http.StatusOK, "page") })
	r.POST("/*path", func(c *gin.Context) { c.String(http.StatusOK, "posted") })
	return r
}

func TestMiddleware_BlockedIP(t *testing.T) {
	state := newState(t, security.Options{BlockedIPs: []string{"203.0.113.0/24"}})
	router := setupRouter(state, cerberus.Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/docs/payments", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Access denied"}`, w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	events := state.Events.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, security.EventBlockedIPAccess, events[0].Type)
	assert.Equal(t, "/docs/payments", events[0].Path)
	assert.Equal(t, "203.0.113.9", events[0].IP)
	details, ok := events[0].Details.(security.BlockedIPDetails)
	require.True(t, ok)
	assert.Equal(t, "/docs/payments", details.Path)
}

func TestMiddleware_AllowsUnblockedIPWithHeaders(t *testing.T) {
	state := newState(t, security.Options{BlockedIPs: []string{"203.0.113.7"}})
	router := setupRouter(state, cerberus.Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:1000"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, 0, state.Events.Len())
}

func TestMiddleware_UnresolvableIPFailsOpen(t *testing.T) {
	state := newState(t, security.Options{BlockedIPs: []string{"0.0.0.0/0"}})
	router := setupRouter(state, cerberus.Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_CSRF(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		referer string
		want    int
	}{
		{"trusted origin", "https://developer.example.com", "", http.StatusOK},
		{"untrusted origin", "https://evil.example.net", "", http.StatusForbidden},
		{"null origin", "null", "", http.StatusForbidden},
		{"trusted referer", "", "https://developer.example.com/docs", http.StatusOK},
		{"no headers", "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newState(t, security.Options{TrustedOrigins: []string{"https://developer.example.com"}})
			router := setupRouter(state, cerberus.Options{})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/contact", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"Invalid request origin"}`, w.Body.String())
				assert.Equal(t, 1, state.Events.CountByType(security.EventCSRFValidationFailed))
				assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			} else {
				assert.Equal(t, 0, state.Events.Len())
			}
		})
	}
}

func TestMiddleware_SafeMethodSkipsCSRF(t *testing.T) {
	state := newState(t, security.Options{TrustedOrigins: []string{"https://developer.example.com"}})
	router := setupRouter(state, cerberus.Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_ExcludedPrefixes(t *testing.T) {
	state := newState(t, security.Options{BlockedIPs: []string{"203.0.113.7"}})
	c := cerberus.New(state, cerberus.Options{})

	assert.True(t, c.Excluded("/api"))
	assert.True(t, c.Excluded("/api/security/events"))
	assert.True(t, c.Excluded("/_next/static/chunk.js"))
	assert.True(t, c.Excluded("/favicon.ico"))
	assert.False(t, c.Excluded("/apidocs"))
	assert.False(t, c.Excluded("/"))

	router := setupRouter(state, cerberus.Options{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assets/app.js", nil)
	req.RemoteAddr = "203.0.113.7:1"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
	assert.Equal(t, 0, state.Events.Len())
}

func TestMiddleware_Inspection(t *testing.T) {
	tests := []struct {
		mode       string
		wantStatus int
		wantEvents int
	}{
		{security.InspectionMonitor, http.StatusOK, 1},
		{security.InspectionBlock, http.StatusBadRequest, 1},
		{security.InspectionOff, http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			state := newState(t, security.Options{InspectionMode: tt.mode})
			router := setupRouter(state, cerberus.Options{})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/search?q=%3Cscript%3Ealert(1)", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantEvents, state.Events.CountByType(security.EventSuspiciousRequest))
			if tt.wantStatus == http.StatusBadRequest {
				assert.JSONEq(t, `{"error":"Suspicious request blocked"}`, w.Body.String())
			}
		})
	}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestMiddleware_SessionRenewed(t *testing.T) {
	state := newState(t, security.Options{})
	renewer := &stubRenewer{token: "fresh-token", expires: time.Now().Add(24 * time.Hour)}
	router := setupRouter(state, cerberus.Options{Sessions: renewer})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "old-token"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	cookie := findCookie(w, session.CookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "fresh-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
}

func TestMiddleware_SessionClearedOnFailure(t *testing.T) {
	state := newState(t, security.Options{})
	renewer := &stubRenewer{err: errors.New("expired")}
	router := setupRouter(state, cerberus.Options{Sessions: renewer})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	cookie := findCookie(w, session.CookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestMiddleware_SessionOnlyRefreshedOnGet(t *testing.T) {
	state := newState(t, security.Options{TrustedOrigins: []string{"https://developer.example.com"}})
	renewer := &stubRenewer{token: "fresh", expires: time.Now().Add(time.Hour)}
	router := setupRouter(state, cerberus.Options{Sessions: renewer})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contact", nil)
	req.Header.Set("Origin", "https://developer.example.com")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, renewer.calls)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, 0, renewer.calls, "no cookie, no renewal")
}
