package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/eardogger/internal/models"
	"github.com/Skotchmaster/eardogger/internal/urlmatch"
	"github.com/Skotchmaster/eardogger/internal/util"
)

// CreateDogear saves a new (prefix, current) bookmark. The prefix is
// normalized before anything else, and the current URL has to sit under it;
// a second dogear on the same normalized prefix is a conflict, not an
// overwrite.
func (r *Repo) CreateDogear(ctx context.Context, userID int64, prefix, current, displayName string) (*models.Dogear, error) {
	normalized := urlmatch.NormalizePrefix(prefix)
	if current == "" {
		// Bookmark the start of the prefix itself.
		current = "https://" + normalized
	}
	matchable, err := urlmatch.MatchableFromURL(current)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(matchable, normalized) {
		return nil, &PrefixMismatchError{Prefix: normalized, Current: current}
	}

	dogear := models.Dogear{
		UserID:  userID,
		Prefix:  normalized,
		Current: current,
	}
	if displayName != "" {
		dogear.DisplayName = &displayName
	}
	if err := r.DB.WithContext(ctx).Create(&dogear).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &DuplicatePrefixError{Prefix: normalized}
		}
		return nil, err
	}
	return &dogear, nil
}

// UpdateDogears advances every owned dogear whose prefix contains the new
// current URL. Overlapping prefixes mean this can touch several rows at once;
// that's deliberate, and the caller gets all of them back. No matching rows
// is a normal empty result, and so is a malformed URL: the caller is expected
// to fall back to the create flow, which reports URL problems properly.
func (r *Repo) UpdateDogears(ctx context.Context, userID int64, current string) ([]models.Dogear, error) {
	matchable, err := urlmatch.MatchableFromURL(current)
	if err != nil {
		return nil, nil
	}

	now := time.Now().UTC()
	var touched []models.Dogear
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND ? LIKE prefix || '%'", userID, matchable).
			Find(&touched).Error; err != nil {
			return err
		}
		if len(touched) == 0 {
			return nil
		}
		ids := make([]int64, len(touched))
		for i := range touched {
			ids[i] = touched[i].ID
		}
		if err := tx.Model(&models.Dogear{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"current": current, "updated": now}).Error; err != nil {
			return err
		}
		for i := range touched {
			touched[i].Current = current
			touched[i].Updated = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

// CurrentForSite answers "where was I on this site": the current URL of the
// owned dogear with the longest prefix containing the target. Longest wins so
// overlapping prefixes resolve to the most specific one. Malformed URLs and
// no-match both come back as "".
func (r *Repo) CurrentForSite(ctx context.Context, userID int64, rawURL string) (string, error) {
	matchable, err := urlmatch.MatchableFromURL(rawURL)
	if err != nil {
		return "", nil
	}

	var dogear models.Dogear
	err = r.DB.WithContext(ctx).
		Where("user_id = ? AND ? LIKE prefix || '%'", userID, matchable).
		Order("length(prefix) DESC").
		First(&dogear).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return dogear.Current, nil
}

// DestroyDogear deletes a dogear scoped to its owner. Returns whether a row
// was deleted; "not yours" and "doesn't exist" are the same false.
func (r *Repo) DestroyDogear(ctx context.Context, id, userID int64) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Dogear{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListDogears pages through a user's dogears, most recently updated first.
// Count and page share one transaction snapshot.
func (r *Repo) ListDogears(ctx context.Context, userID int64, page, size int) ([]models.Dogear, util.ListMeta, error) {
	offset, err := util.Offset(page, size)
	if err != nil {
		return nil, util.ListMeta{}, err
	}

	var list []models.Dogear
	var count int64
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Dogear{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).
			Order("updated DESC").
			Limit(size).Offset(offset).
			Find(&list).Error
	})
	if err != nil {
		return nil, util.ListMeta{}, err
	}
	return list, util.ListMeta{Count: count, Page: page, Size: size}, nil
}
