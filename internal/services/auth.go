package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/apierr"
	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/types"
)

type AuthTokens struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *types.User `json:"user"`
}

type AccessClaims struct {
	UserID uuid.UUID `json:"uid"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*AuthTokens, error)
	Login(ctx context.Context, email, password string) (*AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseAccessToken(tokenString string) (*AccessClaims, error)
}

type authService struct {
	db         *gorm.DB
	users      repos.UserRepo
	tokens     repos.UserTokenRepo
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *logger.Logger
}

func NewAuthService(db *gorm.DB, users repos.UserRepo, tokens repos.UserTokenRepo, log *logger.Logger) (AuthService, error) {
	secret := strings.TrimSpace(envutil.GetEnv("JWT_SECRET", "", log))
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET required")
	}
	accessMinutes := envutil.GetEnvAsInt("JWT_ACCESS_TTL_MINUTES", 15, log)
	refreshHours := envutil.GetEnvAsInt("JWT_REFRESH_TTL_HOURS", 24*7, log)
	return &authService{
		db:         db,
		users:      users,
		tokens:     tokens,
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshHours) * time.Hour,
		log:        log.With("service", "AuthService"),
	}, nil
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*AuthTokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apierr.Validation(fmt.Errorf("valid email required"))
	}
	if len(password) < 8 {
		return nil, apierr.Validation(fmt.Errorf("password must be at least 8 characters"))
	}

	if _, err := s.users.GetByEmail(ctx, nil, email); err == nil {
		return nil, apierr.Validation(fmt.Errorf("email already registered"))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, nil, &types.User{
		Email:    email,
		Password: string(hashed),
		Name:     strings.TrimSpace(name),
	})
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	user, err := s.users.GetByEmail(ctx, nil, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Validation(fmt.Errorf("invalid credentials"))
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apierr.Validation(fmt.Errorf("invalid credentials"))
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	stored, err := s.tokens.GetByRefreshToken(ctx, nil, refreshToken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Validation(fmt.Errorf("invalid refresh token"))
	}
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(stored.ExpiresAt) {
		_ = s.tokens.DeleteByRefreshToken(ctx, nil, refreshToken)
		return nil, apierr.Validation(fmt.Errorf("refresh token expired"))
	}

	user, err := s.users.GetByID(ctx, nil, stored.UserID)
	if err != nil {
		return nil, err
	}

	// Rotate: the old refresh token dies with this exchange.
	if err := s.tokens.DeleteByRefreshToken(ctx, nil, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteByRefreshToken(ctx, nil, refreshToken)
}

func (s *authService) issueTokens(ctx context.Context, user *types.User) (*AuthTokens, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	refreshRaw := make([]byte, 32)
	if _, err := rand.Read(refreshRaw); err != nil {
		return nil, err
	}
	refresh := hex.EncodeToString(refreshRaw)
	if _, err := s.tokens.Create(ctx, nil, &types.UserToken{
		UserID:       user.ID,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.refreshTTL),
	}); err != nil {
		return nil, err
	}

	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         user,
	}, nil
}

func (s *authService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
