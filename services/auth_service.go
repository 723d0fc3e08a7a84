package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudbox/models"
	"cloudbox/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService struct {
	users           UserRepository
	jwtSecret       string
	tokenExpiration time.Duration
	logger          *zap.Logger
}

func NewAuthService(users UserRepository, jwtSecret string, tokenExpiration time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:           users,
		jwtSecret:       jwtSecret,
		tokenExpiration: tokenExpiration,
		logger:          logger,
	}
}

// Register creates an account. Emails are unique, compared case-insensitively.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", models.ErrInvalidArgument)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", models.ErrInvalidArgument, minPasswordLength)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: email already registered", models.ErrInvalidOperation)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Add(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return user, nil
}

// Login checks the credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("%w: email and password are required", models.ErrInvalidArgument)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized)
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized)
	}

	token, err := utils.GenerateJWTTokenWithSecret(user, s.jwtSecret, s.tokenExpiration)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

func (s *AuthService) GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}
