package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

// AuthService handles attendant/admin login and token validation. The
// credential and role rows live in the hosted backend; this service only
// verifies and issues tokens.
type AuthService struct {
	creds     port.CredentialStore
	roles     port.RoleStore
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(creds port.CredentialStore, roles port.RoleStore, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		creds:     creds,
		roles:     roles,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// Claims are the token claims the middleware works with.
type Claims struct {
	Sub  string
	Role string
}

// Login verifies an attendant credential and issues an access token
// carrying the user's role.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail e senha são obrigatórios"}
	}

	cred, err := s.creds.GetCredentialByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred == nil || !cred.Active {
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("user_id", cred.UserID))
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	role, err := s.roles.GetUserRole(ctx, cred.UserID)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	if role == nil {
		return nil, &domain.ErrForbidden{Action: "acesso ao painel sem perfil atribuído"}
	}

	expiresAt := time.Now().Add(s.accessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  cred.UserID,
		"role": role.Role,
		"iat":  time.Now().Unix(),
		"exp":  expiresAt.Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("attendant logged in",
		zap.String("user_id", cred.UserID),
		zap.String("role", role.Role),
	)

	return &domain.LoginResponse{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
		UserID:      cred.UserID,
		Role:        role.Role,
	}, nil
}

// ValidateAccessToken parses and verifies a bearer token.
func (s *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}

	return &Claims{Sub: sub, Role: role}, nil
}
