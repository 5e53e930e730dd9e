package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/eardogger/internal/config"
	"github.com/Skotchmaster/eardogger/internal/models"
	"github.com/Skotchmaster/eardogger/internal/repo"
)

// pgimport copies an existing postgres database into a fresh sqlite file:
// users, tokens, and dogears, with their ids intact so cross-references
// survive. Sessions are deliberately skipped; everyone logs in again after a
// migration.
func main() {
	_ = godotenv.Load()

	var (
		pgDSN  = flag.String("from", config.EnvDefault("PG_DSN", ""), "postgres DSN to import from")
		dbFile = flag.String("to", config.EnvDefault("DATABASE_FILE", "eardogger.db"), "sqlite file to import into")
	)
	flag.Parse()
	if *pgDSN == "" {
		log.Fatal("no postgres DSN; pass -from or set PG_DSN")
	}

	source, err := gorm.Open(postgres.Open(*pgDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("can't open postgres: %v", err)
	}

	dest, err := repo.Open(*dbFile)
	if err != nil {
		log.Fatalf("can't open sqlite: %v", err)
	}
	if err := dest.Migrate(); err != nil {
		log.Fatalf("can't migrate sqlite: %v", err)
	}

	total := 0
	total += copyTable(source, dest.DB, "users", &[]models.User{})
	total += copyTable(source, dest.DB, "tokens", &[]models.Token{})
	total += copyTable(source, dest.DB, "dogears", &[]models.Dogear{})
	log.Printf("done, %d rows imported into %s", total, *dbFile)

	if err := dest.Close(); err != nil {
		log.Fatalf("closing sqlite: %v", err)
	}
}

func copyTable[T any](source, dest *gorm.DB, name string, batch *[]T) int {
	copied := 0
	err := source.FindInBatches(batch, 500, func(_ *gorm.DB, _ int) error {
		if err := dest.Create(batch).Error; err != nil {
			return err
		}
		copied += len(*batch)
		return nil
	}).Error
	if err != nil {
		log.Fatalf("copying %s: %v", name, err)
	}
	log.Printf("copied %d %s", copied, name)
	return copied
}
