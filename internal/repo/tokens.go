package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/eardogger/internal/hash"
	"github.com/Skotchmaster/eardogger/internal/models"
	"github.com/Skotchmaster/eardogger/internal/util"
)

// TokenVersionPrefix marks token cleartexts so a bearer value can be
// recognized on sight.
const TokenVersionPrefix = "eardoggerv1."

// CreateToken builds a fresh API token and returns it along with the only
// copy of the cleartext there will ever be: we persist the sha256 of it, not
// the thing itself.
func (r *Repo) CreateToken(ctx context.Context, userID int64, scope models.TokenScope, comment string) (*models.Token, string, error) {
	cleartext := TokenVersionPrefix + uuid.NewString()
	token := models.Token{
		UserID:    userID,
		TokenHash: hash.Sha256Hex(cleartext),
		Scope:     string(scope),
	}
	if comment != "" {
		token.Comment = &comment
	}
	if err := r.DB.WithContext(ctx).Create(&token).Error; err != nil {
		return nil, "", err
	}
	return &token, cleartext, nil
}

// AuthenticateToken looks up a token by the hash of the presented cleartext,
// joined to its user. A miss is (nil, nil, nil). The last-used bump is a
// fire-and-forget write; the record handed back carries the freshly computed
// timestamp rather than whatever the background write eventually persists.
func (r *Repo) AuthenticateToken(ctx context.Context, cleartext string) (*models.Token, *models.User, error) {
	tokenHash := hash.Sha256Hex(cleartext)

	var token models.Token
	err := r.DB.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, token.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	now := time.Now().UTC()
	r.Tasks.Go("token-last-used-bump", func(ctx context.Context) error {
		return r.DB.WithContext(ctx).Model(&models.Token{}).
			Where("id = ?", token.ID).
			Update("last_used", now).Error
	})
	token.LastUsed = &now

	return &token, &user, nil
}

// DestroyToken deletes a token scoped to its owner, so one user can't delete
// another's. Returns whether a row was deleted.
func (r *Repo) DestroyToken(ctx context.Context, id, userID int64) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Token{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListTokens pages through a user's tokens, most recently used first (never
// used sorts last, ties broken by newest id). Count and page come from one
// transaction so the meta can't disagree with the slice.
func (r *Repo) ListTokens(ctx context.Context, userID int64, page, size int) ([]models.Token, util.ListMeta, error) {
	offset, err := util.Offset(page, size)
	if err != nil {
		return nil, util.ListMeta{}, err
	}

	var list []models.Token
	var count int64
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Token{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).
			Order("last_used DESC NULLS LAST, id DESC").
			Limit(size).Offset(offset).
			Find(&list).Error
	})
	if err != nil {
		return nil, util.ListMeta{}, err
	}
	return list, util.ListMeta{Count: count, Page: page, Size: size}, nil
}
