package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/eardogger/internal/models"
)

// SessionLifetime is the sliding window a login session can idle between
// uses before it expires.
const SessionLifetime = 90 * 24 * time.Hour

// CreateSession makes a new login session for a user: two independent random
// secrets (the session id and the per-session CSRF token) and a fresh expiry.
func (r *Repo) CreateSession(ctx context.Context, userID int64) (*models.Session, error) {
	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CSRFToken: uuid.NewString(),
		Expires:   time.Now().UTC().Add(SessionLifetime),
	}
	if err := r.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// AuthenticateSession finds a non-expired session and its user. An expired or
// unknown id is (nil, nil, nil); the caller must treat both as "never logged
// in". On a hit it returns the stored expiry immediately and dispatches a
// fire-and-forget write that extends the sliding window, conditioned on the
// row still being live at write time so a concurrent logout or sweep can't be
// resurrected.
func (r *Repo) AuthenticateSession(ctx context.Context, id string) (*models.Session, *models.User, error) {
	now := time.Now().UTC()

	var session models.Session
	err := r.DB.WithContext(ctx).
		Where("id = ? AND expires > ?", id, now).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Row got cascaded away between the two reads.
			return nil, nil, nil
		}
		return nil, nil, err
	}

	r.Tasks.Go("session-expiry-bump", func(ctx context.Context) error {
		bumpTime := time.Now().UTC()
		return r.DB.WithContext(ctx).Model(&models.Session{}).
			Where("id = ? AND expires > ?", id, bumpTime).
			Update("expires", bumpTime.Add(SessionLifetime)).Error
	})

	return &session, &user, nil
}

// DestroySession deletes one session; returns whether it existed.
func (r *Repo) DestroySession(ctx context.Context, id string) (bool, error) {
	res := r.DB.WithContext(ctx).Delete(&models.Session{ID: id})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpiredSessions bulk-deletes everything past its expiry. Meant to run
// periodically from a background sweep, never on a request path.
func (r *Repo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires < ?", time.Now().UTC()).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
