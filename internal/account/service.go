package account

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/merchantlabs/backoffice/internal/config"
	"github.com/merchantlabs/backoffice/internal/domain/identity"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

type Service struct {
	users  identity.Repository
	node   *snowflake.Node
	logger *zap.Logger

	jwtSecret []byte
}

func NewService(cfg *config.Config, users identity.Repository, node *snowflake.Node, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		node:      node,
		logger:    logger,
		jwtSecret: []byte(cfg.AuthJWTSecret),
	}
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Register creates a new customer account. It runs before any actor context
// exists, so the write is excluded from audit capture.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*identity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, identity.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &identity.User{
		ID:           s.node.GenerateID(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         identity.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user_registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*identity.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, identity.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, identity.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user_logged_in", zap.Int64("user_id", user.ID))
	return user, pair, nil
}

// Refresh redeems a refresh token for a new pair and revokes the old one.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	stored, err := s.users.FindRefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.Valid(time.Now().UTC()) {
		return nil, identity.ErrTokenExpired
	}

	user, err := s.users.FindUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, identity.ErrTokenExpired
	}

	if err := s.users.RevokeRefreshToken(ctx, token); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Revoke invalidates a refresh token (logout).
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.users.RevokeRefreshToken(ctx, token)
}

// VerifyAccessToken parses and validates a JWT access token.
func (s *Service) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (s *Service) issueTokens(ctx context.Context, user *identity.User) (*TokenPair, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(accessTokenTTL)

	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refresh := &identity.RefreshToken{
		ID:        s.node.GenerateID(),
		UserID:    user.ID,
		Token:     strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		ExpiresAt: now.Add(refreshTokenTTL),
		CreatedAt: now,
	}
	if err := s.users.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt,
	}, nil
}
