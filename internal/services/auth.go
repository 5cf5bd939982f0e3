package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"nexus-care/internal/config"
	"nexus-care/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService is the credential store: user records and password checks.
type AuthService struct {
	cfg   *config.Config
	db    *gorm.DB
	audit AuditRecorder
	log   *zap.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(cfg *config.Config, db *gorm.DB, audit AuditRecorder, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg:   cfg,
		db:    db,
		audit: audit,
		log:   log.Named("auth"),
	}
}

func (s *AuthService) bcryptCost() int {
	if s.cfg.Security.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.cfg.Security.BcryptCost
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost())
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
	}
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// Register creates a user. An empty role means Resident.
func (s *AuthService) Register(ctx context.Context, email, username, password string, role models.Role) (*models.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return nil, fmt.Errorf("%w: missing fields", ErrValidation)
	}

	if role == "" {
		role = models.RoleResident
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if role == models.RoleAdmin && !s.cfg.Security.AllowAdminSignup {
		return nil, fmt.Errorf("%w: admin accounts cannot be self-registered", ErrValidation)
	}

	user, err := s.createUser(ctx, email, username, password, role)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, user.ID, "User Registered")
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email, username, password string, role models.Role) (*models.User, error) {
	db := s.db.WithContext(ctx)

	// Check if user exists
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
	}

	if err := db.Create(user).Error; err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

// Verify returns the user owning email if password matches. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Verify(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Spend the same bcrypt time as a real comparison.
			bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func (s *AuthService) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("nexus-care-dummy-password"), s.bcryptCost())
	})
	return s.dummyHash
}

// ResetPassword overwrites the password of the account registered under email.
//
// TODO: require a single-use token delivered to the account's email before
// overwriting; any caller who knows an email can currently take the account over.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = strings.TrimSpace(email)
	if email == "" || newPassword == "" {
		return fmt.Errorf("%w: missing fields", ErrValidation)
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	hashedPassword, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("password_hash", hashedPassword).Error; err != nil {
		return err
	}

	s.audit.Record(ctx, user.ID, "Password Reset")
	return nil
}

// GetUser returns a user by ID
func (s *AuthService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateDefaultUser creates the configured bootstrap account if the users table is empty
func (s *AuthService) CreateDefaultUser(ctx context.Context) error {
	def := s.cfg.DefaultUser
	if def.Email == "" || def.Password == "" {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	role := models.Role(def.Role)
	if role == "" {
		role = models.RoleAdmin
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown default user role %q", ErrValidation, def.Role)
	}

	username := def.Username
	if username == "" {
		username = "AdminUser"
	}

	user, err := s.createUser(ctx, def.Email, username, def.Password, role)
	if err != nil {
		return err
	}

	s.log.Info("created default user", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return nil
}
