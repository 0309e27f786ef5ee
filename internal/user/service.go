package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "showfinder"

// service implements the Service interface
type service struct {
	repo      Repository
	jwtSecret string
	jwtExpiry time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates a user service with JWT validation and defaults
func NewService(cfg *config.JWTConfig, repo Repository, log *logger.Logger) (Service, error) {
	secret := "change-me-in-production"
	if cfg != nil && cfg.Secret != "" {
		secret = cfg.Secret
	}

	expiry := 24 * time.Hour
	if cfg != nil && cfg.Expiration != "" {
		duration, err := time.ParseDuration(cfg.Expiration)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT expiration '%s': %w", cfg.Expiration, err)
		}
		expiry = duration
	}

	return &service{
		repo:      repo,
		jwtSecret: secret,
		jwtExpiry: expiry,
		logger:    log.WithComponent("user-service"),
		now:       time.Now,
	}, nil
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (s *service) SignUp(req CreateUserRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.logger.Info("User signup attempt for email: " + email)

	existing, err := s.repo.FindByEmail(email)
	switch {
	case err == nil && existing != nil:
		s.logger.Info("Signup failed - user already exists: " + email)
		return nil, ErrAlreadyExists
	case err != nil && !errors.Is(err, ErrNotFound):
		s.logger.Error("Failed to look up " + email + ": " + err.Error())
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password for " + email + ": " + err.Error())
		return nil, err
	}

	now := s.now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(user); err != nil {
		s.logger.Error("Failed to create user " + email + ": " + err.Error())
		return nil, err
	}

	s.logger.Info("User created successfully: " + email + " (ID: " + user.ID.String() + ")")
	return user, nil
}

func (s *service) Login(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.logger.Info("User login attempt for email: " + email)

	user, err := s.repo.FindByEmail(email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to look up " + email + ": " + err.Error())
			return "", err
		}
		s.logger.Info("Login failed - user not found: " + email)
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Login failed - invalid password for " + email + " (ID: " + user.ID.String() + ")")
		return "", ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		s.logger.Error("Failed to generate JWT token for " + email + " (ID: " + user.ID.String() + "): " + err.Error())
		return "", err
	}

	s.logger.Info("User logged in successfully: " + email + " (ID: " + user.ID.String() + ")")
	return token, nil
}

func (s *service) GetUserByID(id uuid.UUID) (*User, error) {
	return s.repo.FindByID(id)
}

func (s *service) UpdateProfile(id uuid.UUID, req UpdateProfileRequest) (*User, error) {
	user, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(user); err != nil {
		s.logger.Error("Failed to update profile for " + id.String() + ": " + err.Error())
		return nil, err
	}
	return user, nil
}

func (s *service) ValidateToken(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errors.New("invalid user ID in token")
	}

	return s.repo.FindByID(userID)
}

func (s *service) generateToken(user *User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
