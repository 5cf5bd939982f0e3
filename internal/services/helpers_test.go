package services

import (
	"context"
	"path/filepath"
	"testing"

	"nexus-care/internal/config"
	"nexus-care/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	cfg        *config.Config
	db         *gorm.DB
	logs       *observer.ObservedLogs
	audit      *AuditService
	auth       *AuthService
	sessions   *SessionManager
	complaints *ComplaintService
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "nexus_test.db")},
		},
		Session: config.SessionConfig{
			Secret:    "test-secret-key-for-testing-only",
			Issuer:    "nexus-care-test",
			ExpiresIn: "1h",
		},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
	}
}

// setupTestEnv wires every service against a throwaway SQLite database.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	audit := NewAuditService(db, log)
	auth := NewAuthService(cfg, db, audit, log)

	return &testEnv{
		cfg:        cfg,
		db:         db,
		logs:       logs,
		audit:      audit,
		auth:       auth,
		sessions:   NewSessionManager(cfg, auth, NewDBSessionStore(db), audit, log),
		complaints: NewComplaintService(db, audit),
	}
}

func (e *testEnv) register(t *testing.T, email, username string, role models.Role) *models.User {
	t.Helper()
	user, err := e.auth.createUser(context.Background(), email, username, "secret-pw", role)
	require.NoError(t, err)
	return user
}

func identityOf(u *models.User) *Identity {
	return &Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (e *testEnv) auditActions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, e.db.Model(&models.AuditLog{}).Order("id").Pluck("action", &actions).Error)
	return actions
}
