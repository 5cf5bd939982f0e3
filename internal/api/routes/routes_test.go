package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"nexus-care/internal/config"
	"nexus-care/internal/models"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testServer struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	router *gin.Engine
	logs   *observer.ObservedLogs
}

// client carries the session cookie between requests like a browser would.
type client struct {
	srv     *testServer
	cookies map[string]*http.Cookie
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "nexus_test.db")},
		},
		Session: config.SessionConfig{
			Secret:     "test-secret-key-for-testing-only",
			Issuer:     "nexus-care-test",
			CookieName: "nexus_session",
			ExpiresIn:  "1h",
		},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
	}

	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, cfg, NewServices(cfg, db, services.NewDBSessionStore(db), log), log)

	return &testServer{t: t, cfg: cfg, db: db, router: r, logs: logs}
}

func (s *testServer) newClient() *client {
	return &client{srv: s, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.srv.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.srv.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	c.srv.router.ServeHTTP(w, req)

	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// seedUser inserts an account directly so tests can create admins.
func (s *testServer) seedUser(email, username, password string, role models.Role) *models.User {
	s.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(s.t, err)
	user := &models.User{Email: email, Username: username, PasswordHash: string(hash), Role: role}
	require.NoError(s.t, s.db.Create(user).Error)
	return user
}

func (s *testServer) loggedIn(email, password string) *client {
	s.t.Helper()
	c := s.newClient()
	w := c.do("POST", "/login", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return c
}

func (s *testServer) auditActions() []string {
	s.t.Helper()
	var actions []string
	require.NoError(s.t, s.db.Model(&models.AuditLog{}).Order("id").Pluck("action", &actions).Error)
	return actions
}

type complaintJSON struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	IsDeleted bool   `json:"is_deleted"`
}

func TestRegisterAndLogin(t *testing.T) {
	srv := setupTestServer(t)
	c := srv.newClient()

	w := c.do("POST", "/register", gin.H{"email": "a@x.com", "username": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"Registration successful"}`, w.Body.String())

	t.Run("duplicate email", func(t *testing.T) {
		w := c.do("POST", "/register", gin.H{"email": "a@x.com", "username": "other", "password": "pw2"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := c.do("POST", "/register", gin.H{"email": "b@x.com", "password": "pw"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		w := c.do("POST", "/register", gin.H{"email": "bob", "username": "bob", "password": "pw"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Invalid email"}`, w.Body.String())
	})

	t.Run("invalid role", func(t *testing.T) {
		w := c.do("POST", "/register", gin.H{"email": "b@x.com", "username": "bob", "password": "pw", "role": "Janitor"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong password is anonymous", func(t *testing.T) {
		w := c.do("POST", "/login", gin.H{"email": "a@x.com", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, c.cookies)

		w = c.do("GET", "/check-session", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"loggedin":false}`, w.Body.String())
	})

	t.Run("login sets an http-only cookie", func(t *testing.T) {
		w := c.do("POST", "/login", gin.H{"email": "a@x.com", "password": "pw1"})
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		decode(t, w, &body)
		assert.Equal(t, "Resident", body["role"])
		assert.Equal(t, "alice", body["username"])

		cookie := c.cookies[srv.cfg.Session.CookieName]
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.Greater(t, cookie.MaxAge, 0)
	})

	t.Run("check-session reports the user", func(t *testing.T) {
		w := c.do("GET", "/check-session", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			LoggedIn bool `json:"loggedin"`
			User     struct {
				ID       uint   `json:"id"`
				Username string `json:"username"`
				Role     string `json:"role"`
			} `json:"user"`
		}
		decode(t, w, &body)
		assert.True(t, body.LoggedIn)
		assert.NotZero(t, body.User.ID)
		assert.Equal(t, "alice", body.User.Username)
		assert.Equal(t, "Resident", body.User.Role)
	})

	t.Run("logout returns to anonymous", func(t *testing.T) {
		token := c.cookies[srv.cfg.Session.CookieName].Value

		w := c.do("POST", "/logout", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		// replaying the old cookie must not resurrect the session
		replay := srv.newClient()
		replay.cookies[srv.cfg.Session.CookieName] = &http.Cookie{Name: srv.cfg.Session.CookieName, Value: token}
		w = replay.do("GET", "/check-session", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = c.do("POST", "/logout", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	assert.Equal(t, []string{"User Registered", "User Login"}, srv.auditActions())
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	srv := setupTestServer(t)
	srv.seedUser("a@x.com", "alice", "pw1", models.RoleResident)

	c := srv.loggedIn("a@x.com", "pw1")
	first := c.cookies[srv.cfg.Session.CookieName].Value

	w := c.do("POST", "/login", gin.H{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, first, c.cookies[srv.cfg.Session.CookieName].Value)

	var count int64
	srv.db.Model(&models.Session{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	srv := setupTestServer(t)
	srv.seedUser("a@x.com", "alice", "pw1", models.RoleResident)

	c := srv.loggedIn("a@x.com", "pw1")
	cookie := c.cookies[srv.cfg.Session.CookieName]
	cookie.Value += "x"

	w := c.do("GET", "/check-session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do("DELETE", "/complaints/1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestResetPassword(t *testing.T) {
	srv := setupTestServer(t)
	srv.seedUser("a@x.com", "alice", "old-pw", models.RoleResident)
	c := srv.newClient()

	w := c.do("POST", "/reset-password", gin.H{"email": "ghost@x.com", "new_password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do("POST", "/reset-password", gin.H{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do("POST", "/reset-password", gin.H{"email": "a@x.com", "new_password": "new-pw"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do("POST", "/login", gin.H{"email": "a@x.com", "password": "old-pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = c.do("POST", "/login", gin.H{"email": "a@x.com", "password": "new-pw"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestComplaintWorkflow(t *testing.T) {
	srv := setupTestServer(t)
	srv.seedUser("admin@x.com", "admin", "adminpw", models.RoleAdmin)
	srv.seedUser("a@x.com", "alice", "pw1", models.RoleResident)
	srv.seedUser("b@x.com", "bob", "pw2", models.RoleResident)

	admin := srv.loggedIn("admin@x.com", "adminpw")
	alice := srv.loggedIn("a@x.com", "pw1")
	bob := srv.loggedIn("b@x.com", "pw2")
	anon := srv.newClient()

	t.Run("anonymous cannot file", func(t *testing.T) {
		w := anon.do("POST", "/complaints", gin.H{"title": "Leak"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("title is required", func(t *testing.T) {
		w := alice.do("POST", "/complaints", gin.H{"description": "no title"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := alice.do("POST", "/complaints", gin.H{"title": "Leak", "description": "Water under the sink"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID uint `json:"id"`
	}
	decode(t, w, &created)
	w = bob.do("POST", "/complaints", gin.H{"title": "Noise"})
	require.Equal(t, http.StatusCreated, w.Code)

	list := func(c *client) []complaintJSON {
		t.Helper()
		w := c.do("GET", "/complaints", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out []complaintJSON
		decode(t, w, &out)
		return out
	}

	t.Run("visibility", func(t *testing.T) {
		mine := list(alice)
		require.Len(t, mine, 1)
		assert.Equal(t, "Leak", mine[0].Title)
		assert.Equal(t, "Pending", mine[0].Status)
		assert.Equal(t, "alice", mine[0].Username)

		all := list(admin)
		require.Len(t, all, 2)
		assert.Equal(t, "Noise", all[0].Title)

		w := anon.do("GET", "/complaints", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	statusPath := fmt.Sprintf("/complaints/%d/status", created.ID)
	deletePath := fmt.Sprintf("/complaints/%d", created.ID)

	t.Run("residents cannot moderate", func(t *testing.T) {
		w := alice.do("PUT", statusPath, gin.H{"status": "Resolved"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = alice.do("DELETE", deletePath, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = anon.do("DELETE", deletePath, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Len(t, list(alice), 1)
	})

	t.Run("admin updates status", func(t *testing.T) {
		w := admin.do("PUT", statusPath, gin.H{"status": "Closed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = admin.do("PUT", "/complaints/abc/status", gin.H{"status": "Resolved"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = admin.do("PUT", "/complaints/9999/status", gin.H{"status": "Resolved"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = admin.do("PUT", statusPath, gin.H{"status": "Resolved"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Resolved", list(alice)[0].Status)
	})

	t.Run("admin soft-deletes", func(t *testing.T) {
		w := admin.do("DELETE", "/complaints/9999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = admin.do("DELETE", deletePath, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, list(alice))
		assert.Len(t, list(admin), 1)

		var stored models.Complaint
		require.NoError(t, srv.db.First(&stored, created.ID).Error)
		assert.True(t, stored.IsDeleted)
	})

	t.Run("audit trail", func(t *testing.T) {
		actions := srv.auditActions()
		assert.Contains(t, actions, fmt.Sprintf("Updated Complaint %d to Resolved", created.ID))
		assert.Contains(t, actions, fmt.Sprintf("Deleted Complaint %d", created.ID))

		w := admin.do("GET", "/audit-logs?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			AuditLogs []models.AuditLog `json:"audit_logs"`
		}
		decode(t, w, &body)
		require.Len(t, body.AuditLogs, 2)
		assert.Equal(t, fmt.Sprintf("Deleted Complaint %d", created.ID), body.AuditLogs[0].Action)

		w = alice.do("GET", "/audit-logs", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAuditFailureDoesNotFailRequest(t *testing.T) {
	srv := setupTestServer(t)
	require.NoError(t, srv.db.Migrator().DropTable(&models.AuditLog{}))

	c := srv.newClient()
	w := c.do("POST", "/register", gin.H{"email": "a@x.com", "username": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = c.do("POST", "/login", gin.H{"email": "a@x.com", "password": "pw1"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Len(t, srv.logs.FilterMessage("audit log error").All(), 2)
}

func TestSessionStoreOutageIsInternalError(t *testing.T) {
	srv := setupTestServer(t)
	srv.seedUser("a@x.com", "alice", "pw1", models.RoleResident)
	alice := srv.loggedIn("a@x.com", "pw1")

	require.NoError(t, srv.db.Migrator().DropTable(&models.Session{}))

	w := alice.do("POST", "/complaints", gin.H{"title": "Leak"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Error"}`, w.Body.String())

	w = alice.do("GET", "/check-session", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// callers without a cookie never touch the store
	w = srv.newClient().do("GET", "/complaints", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	srv.db.Model(&models.Complaint{}).Count(&count)
	assert.Zero(t, count)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := setupTestServer(t)
	c := srv.newClient()

	w := c.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = c.do("GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nexuscare_http_requests_total")

	w = c.do("GET", "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
