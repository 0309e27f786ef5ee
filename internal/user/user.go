package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned on sign up with a registered email
	ErrAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account that owns view interactions and recommendations
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string    `json:"-" gorm:"not null;size:255"`
	DisplayName  string    `json:"display_name" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Repository defines the interface for user data access
type Repository interface {
	Create(user *User) error
	FindByEmail(email string) (*User, error)
	FindByID(id uuid.UUID) (*User, error)
	Update(user *User) error
}

// Service defines the interface for user business logic
type Service interface {
	SignUp(req CreateUserRequest) (*User, error)
	Login(email, password string) (string, error)
	GetUserByID(id uuid.UUID) (*User, error)
	ValidateToken(tokenString string) (*User, error)
	UpdateProfile(id uuid.UUID, req UpdateProfileRequest) (*User, error)
}

// CreateUserRequest represents user creation request
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"max=100"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest changes the caller's profile; nil fields are left alone
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
}

// UserResponse represents user in API responses (without password)
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "users"
}
