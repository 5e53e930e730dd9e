package models

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	Email        *string   `json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Created      time.Time `gorm:"autoCreateTime"           json:"created"`
}

type Session struct {
	ID        string    `gorm:"primaryKey"     json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CSRFToken string    `gorm:"not null"       json:"-"`
	Expires   time.Time `gorm:"not null;index" json:"expires"`
}

type Token struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64      `gorm:"index;not null"           json:"user_id"`
	User      User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TokenHash string     `gorm:"uniqueIndex;not null"     json:"-"`
	Scope     string     `gorm:"not null"                 json:"scope"`
	Created   time.Time  `gorm:"autoCreateTime"           json:"created"`
	LastUsed  *time.Time `json:"last_used"`
	Comment   *string    `json:"comment"`
}

type Dogear struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_dogears_user_prefix" json:"user_id"`
	User        User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Prefix      string    `gorm:"not null;uniqueIndex:idx_dogears_user_prefix" json:"prefix"`
	Current     string    `gorm:"not null"             json:"current"`
	DisplayName *string   `json:"display_name"`
	Updated     time.Time `gorm:"autoCreateTime;index" json:"updated"`
}

// TokenScope is the permission tier of an API token. Scopes live in the
// database as text; anything unrecognized decodes to ScopeInvalid, which
// grants nothing.
type TokenScope string

const (
	// Can POST /api/v1/create and /api/v1/update.
	ScopeWriteDogears TokenScope = "write_dogears"
	// Everything write_dogears can do, plus GET /api/v1/list and
	// DELETE /api/v1/dogear/:id.
	ScopeManageDogears TokenScope = "manage_dogears"
	ScopeInvalid       TokenScope = "INVALID"
)

func ParseScope(s string) TokenScope {
	switch s {
	case string(ScopeWriteDogears):
		return ScopeWriteDogears
	case string(ScopeManageDogears):
		return ScopeManageDogears
	default:
		return ScopeInvalid
	}
}

func (t *Token) TokenScope() TokenScope {
	return ParseScope(t.Scope)
}
