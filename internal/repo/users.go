package repo

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/eardogger/internal/hash"
	"github.com/Skotchmaster/eardogger/internal/models"
)

var usernameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,80}$`)

// cleanUsername trims whitespace and validates the allowed username shape.
func cleanUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernameRegexp.MatchString(username) {
		return "", &BadUsernameError{Username: username}
	}
	return username, nil
}

// cleanEmail flat-maps an optional form field: whitespace-only means absent.
func cleanEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}

func (r *Repo) CreateUser(ctx context.Context, username, password, email string) (*models.User, error) {
	username, err := cleanUsername(username)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errEmptyPassword
	}
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        cleanEmail(email),
		PasswordHash: pwHash,
	}
	if err := r.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &DuplicateUsernameError{Username: username}
		}
		return nil, err
	}
	return &user, nil
}

// UserByName fetches a user by name, or nil on a miss. Most app logic should
// go through AuthenticateUser instead.
func (r *Repo) UserByName(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthenticateUser returns the user only if they exist and the password
// matches; a miss and a wrong password are indistinguishable (nil, nil).
func (r *Repo) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	user, err := r.UserByName(ctx, username)
	if err != nil || user == nil {
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, nil
	}
	return user, nil
}

// SetPassword hard-sets a password. Assumes inputs were already validated.
func (r *Repo) SetPassword(ctx context.Context, username, newPassword string) error {
	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("password_hash", pwHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ChangePassword authenticates the current password, checks the
// double-submitted new one, and sets it.
func (r *Repo) ChangePassword(ctx context.Context, username, oldPassword, newPassword, newPasswordAgain string) error {
	if newPassword == "" || newPasswordAgain == "" {
		return errEmptyPassword
	}
	if newPassword != newPasswordAgain {
		return errPasswordsDontMatch
	}
	user, err := r.AuthenticateUser(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	if user == nil {
		return errWrongPassword
	}
	return r.SetPassword(ctx, user.Username, newPassword)
}

// SetEmail sets or clears the user's email.
func (r *Repo) SetEmail(ctx context.Context, username, email string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("email", cleanEmail(email))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DestroyUser deletes a user; sessions, tokens, and dogears cascade away with
// them. Returns whether a row was deleted.
func (r *Repo) DestroyUser(ctx context.Context, id int64) (bool, error) {
	res := r.DB.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
