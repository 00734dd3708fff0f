package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	opRegister     = "users.register"
	opAuthenticate = "users.authenticate"
	opFindUser     = "users.find_user"
	opUserExists   = "users.user_exists"

	fieldUsername        = "username"
	fieldEmail           = "email"
	fieldPassword        = "password"
	fieldEmailOrUsername = "emailOrUsername"

	messageInvalidCredentials = "invalid email/username or password"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	noOpLogger   = zap.NewNop()
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
	// HashCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
	HashCost int
}

// Service owns the users table: registration, credential checks and existence lookups.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	hashCost int
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("users: bcrypt cost %d out of range", hashCost)
	}
	return &Service{
		db:       cfg.Database,
		logger:   logger,
		hashCost: hashCost,
	}, nil
}

// Registration is the signup input.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, registration Registration) (User, error) {
	username := normalize(registration.Username)
	email := strings.ToLower(normalize(registration.Email))

	missing := make([]string, 0, 3)
	if username == "" {
		missing = append(missing, fieldUsername)
	}
	if email == "" {
		missing = append(missing, fieldEmail)
	}
	if registration.Password == "" {
		missing = append(missing, fieldPassword)
	}
	if len(missing) > 0 {
		return User{}, svcerr.Validation(opRegister, "missing_fields",
			"missing required fields: "+strings.Join(missing, ", "), missing...)
	}
	if !emailPattern.MatchString(email) {
		return User{}, svcerr.Validation(opRegister, "invalid_email", "invalid email format", fieldEmail)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(registration.Password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return User{}, svcerr.Validation(opRegister, "password_too_long", "password is too long", fieldPassword)
		}
		s.logError(opRegister, "hash_failed", err)
		return User{}, svcerr.New(svcerr.ErrStore, opRegister, "hash_failed", "failed to hash password", err)
	}

	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if svcerr.IsDuplicateKey(err) {
			return User{}, svcerr.Conflict(opRegister, "duplicate_user", "email or username already exists", err)
		}
		s.logError(opRegister, "insert_failed", err, zap.String(fieldUsername, username))
		return User{}, svcerr.Store(opRegister, "insert_failed", err)
	}
	return user, nil
}

// Authenticate resolves an account by email or username and verifies the password.
// Unknown accounts and wrong passwords produce the same error.
func (s *Service) Authenticate(ctx context.Context, emailOrUsername, password string) (User, error) {
	identifier := normalize(emailOrUsername)
	missing := make([]string, 0, 2)
	if identifier == "" {
		missing = append(missing, fieldEmailOrUsername)
	}
	if password == "" {
		missing = append(missing, fieldPassword)
	}
	if len(missing) > 0 {
		return User{}, svcerr.Validation(opAuthenticate, "missing_fields",
			"missing required fields: "+strings.Join(missing, ", "), missing...)
	}

	var user User
	err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, svcerr.Unauthorized(opAuthenticate, "invalid_credentials", messageInvalidCredentials)
	}
	if err != nil {
		s.logError(opAuthenticate, "query_failed", err)
		return User{}, svcerr.Store(opAuthenticate, "query_failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, svcerr.Unauthorized(opAuthenticate, "invalid_credentials", messageInvalidCredentials)
	}
	return user, nil
}

// FindUserByID loads a user or reports NotFound.
func (s *Service) FindUserByID(ctx context.Context, userID int64) (User, error) {
	if userID <= 0 {
		return User{}, svcerr.NotFound(opFindUser, "user_not_found", "user not found")
	}
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, svcerr.NotFound(opFindUser, "user_not_found", "user not found")
	}
	if err != nil {
		s.logError(opFindUser, "query_failed", err, zap.Int64("user_id", userID))
		return User{}, svcerr.Store(opFindUser, "query_failed", err)
	}
	return user, nil
}

// UserExists reports whether a user row with the id is present.
func (s *Service) UserExists(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		s.logError(opUserExists, "query_failed", err, zap.Int64("user_id", userID))
		return false, svcerr.Store(opUserExists, "query_failed", err)
	}
	return count > 0, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
