// Package service contains the application logic between the HTTP
// handlers and the persistence ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const bcryptCost = 12

// adminUsername is the built-in operator identity. It has no customer or
// employee row; its role comes from the name alone.
const adminUsername = "admin"

// AuthService verifies credentials, derives roles and issues session tokens.
type AuthService struct {
	store     port.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store port.Store, jwtSecret string, tokenTTL time.Duration, metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// Login — POST /api/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", req.Username))

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "username and password are required"}
	}

	cred, err := s.store.GetCredential(ctx, username)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			// Same answer as a wrong password: existence stays secret.
			s.metrics.RecordLogin("failure")
			return nil, &domain.ErrInvalidCredentials{}
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if cred.Locked {
		s.logger.Warn("login rejected: credential locked", zap.String("username", username))
		s.metrics.RecordLogin("failure")
		return nil, &domain.ErrAccountLocked{Username: username}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login rejected: bad password", zap.String("username", username))
		s.metrics.RecordLogin("failure")
		return nil, &domain.ErrInvalidCredentials{}
	}

	user, err := s.buildSessionUser(ctx, cred.Username)
	if err != nil {
		return nil, err
	}

	token, err := s.signToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.metrics.RecordLogin("success")
	s.logger.Info("login succeeded",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)

	return &domain.LoginResponse{Success: true, Token: token, User: user}, nil
}

// buildSessionUser derives the role and attaches role-specific profile
// data. The employee table wins over the customer table, so a username
// present in both logs in as staff.
func (s *AuthService) buildSessionUser(ctx context.Context, username string) (*domain.SessionUser, error) {
	var notFound *domain.ErrNotFound

	emp, err := s.store.GetEmployee(ctx, username)
	if err == nil {
		return &domain.SessionUser{
			Username: emp.Username,
			Fullname: emp.Username,
			Role:     emp.Position,
			Salary:   emp.Salary,
			Position: emp.Position,
		}, nil
	}
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("get employee: %w", err)
	}

	cust, err := s.store.GetCustomer(ctx, username)
	if err == nil {
		accounts, err := s.store.ListAccountsByOwner(ctx, cust.Username)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		return &domain.SessionUser{
			Username: cust.Username,
			Fullname: cust.Fullname,
			Role:     domain.RoleCustomer,
			Accounts: accounts,
		}, nil
	}
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	role := domain.RoleCustomer
	if strings.EqualFold(username, adminUsername) {
		role = domain.RoleAdmin
	}
	return &domain.SessionUser{Username: username, Fullname: username, Role: role}, nil
}

// ============================================================
// Token handling
// ============================================================

// Claims are the custom claims carried in session tokens.
type Claims struct {
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) signToken(user *domain.SessionUser) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: user.Username,
		Fullname: user.Fullname,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a session token. Used by middleware
// and by the explicit verify endpoint.
func (s *AuthService) ValidateToken(tokenString string) (*domain.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "invalid token claims"}
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return nil, &domain.ErrUnauthorized{Message: "invalid role in token"}
	}

	sess := &domain.Session{
		Username: claims.Username,
		Fullname: claims.Fullname,
		Role:     role,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// Verify answers POST /api/auth/verify: the refreshed session identity
// for a still-valid token.
func (s *AuthService) Verify(ctx context.Context, tokenString string) (*domain.SessionUser, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Verify")
	defer span.End()

	sess, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.buildSessionUser(ctx, sess.Username)
}

// HashPassword produces a bcrypt hash for storing a new credential.
func HashPassword(password string) (string, error) {
	if len(password) < 4 {
		return "", &domain.ErrValidation{Field: "password", Message: "password must be at least 4 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
