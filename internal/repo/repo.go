package repo

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/eardogger/internal/models"
)

// Repo is the app's data access layer: a gorm handle over the embedded
// sqlite database plus a tracker for short-lived fire-and-forget writes.
type Repo struct {
	DB    *gorm.DB
	Tasks *Tasks
}

func New(db *gorm.DB) *Repo {
	return &Repo{DB: db, Tasks: NewTasks()}
}

// Open opens the sqlite database at path (":memory:" for tests) with WAL
// mode, enforced foreign keys, and a busy timeout. TranslateError is on so
// unique-constraint violations surface as gorm.ErrDuplicatedKey.
func Open(path string) (*Repo, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB handle: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is its own database; serialize on one
		// connection, whose pragmas we can set directly.
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	} else {
		// Sqlite only ever has a single writer; WAL lets a few readers in.
		// The _pragma DSN params above apply to every pooled connection.
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
	}

	return New(db), nil
}

func (r *Repo) Migrate() error {
	return r.DB.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Token{},
		&models.Dogear{},
	)
}

// Close waits for outstanding background writes, then closes the pool.
func (r *Repo) Close() error {
	r.Tasks.Wait()
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
