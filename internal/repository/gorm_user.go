package repository

import (
	"errors"
	"fmt"
	"strings"

	userPkg "github.com/dustin/showfinder/internal/user"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormUserRepository implements the user.Repository interface with GORM optimizations
type gormUserRepository struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewGORMUserRepository creates a new GORM-based user repository
func NewGORMUserRepository(db *gorm.DB, log *logger.Logger) userPkg.Repository {
	return &gormUserRepository{
		db:     db,
		logger: log.WithComponent("gorm-user-repository"),
	}
}

func (r *gormUserRepository) Create(user *userPkg.User) error {
	r.logger.Info("Creating user " + user.ID.String() + " with email " + user.Email)

	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "SQLSTATE 23505") {
			return userPkg.ErrAlreadyExists
		}
		r.logger.Error("Failed to create user " + user.ID.String() + " with email " + user.Email + ": " + err.Error())
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *gormUserRepository) FindByEmail(email string) (*userPkg.User, error) {
	var user userPkg.User

	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userPkg.ErrNotFound
		}

		r.logger.Error("Database error finding user by email " + email + ": " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &user, nil
}

func (r *gormUserRepository) FindByID(id uuid.UUID) (*userPkg.User, error) {
	var user userPkg.User

	err := r.db.First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userPkg.ErrNotFound
		}

		r.logger.Error("Database error finding user by ID " + id.String() + ": " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &user, nil
}

func (r *gormUserRepository) Update(user *userPkg.User) error {
	result := r.db.Model(user).Select("display_name", "updated_at").Updates(user)
	if err := result.Error; err != nil {
		r.logger.Error("Failed to update user " + user.ID.String() + ": " + err.Error())
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected == 0 {
		return userPkg.ErrNotFound
	}

	return nil
}
