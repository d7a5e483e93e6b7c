package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nikpetrovv/blog_service/internal/models"
)

var (
	ErrDuplicateUsername = errors.New("account with such username already exists")
	ErrDuplicateEmail    = errors.New("account with such email already exists")
	ErrUserNotFound      = errors.New("user not found")
)

type UserRepo struct {
	DB *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{DB: db}
}

func (r *UserRepo) usernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepo) emailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

// CreateUser inserts u after checking both unique columns, so the caller can
// tell the user which field conflicts.
func (r *UserRepo) CreateUser(ctx context.Context, u *models.User) error {
	if taken, err := r.usernameTaken(ctx, u.Username); err != nil {
		return err
	} else if taken {
		return ErrDuplicateUsername
	}
	if taken, err := r.emailTaken(ctx, u.Email); err != nil {
		return err
	} else if taken {
		return ErrDuplicateEmail
	}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes username and email for the user currently known as
// username. The same duplicate checks as CreateUser apply to the new values.
func (r *UserRepo) UpdateProfile(ctx context.Context, username, newUsername, newEmail string) (*models.User, error) {
	user, err := r.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if newUsername != "" && newUsername != user.Username {
		if taken, err := r.usernameTaken(ctx, newUsername); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrDuplicateUsername
		}
		user.Username = newUsername
	}
	if newEmail != "" && newEmail != user.Email {
		if taken, err := r.emailTaken(ctx, newEmail); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrDuplicateEmail
		}
		user.Email = newEmail
	}

	if err := r.DB.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
