package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/interactions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDropOrphanedInteractions = "2024-06-01_drop_orphaned_interactions"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDropOrphanedInteractions, apply: dropOrphanedInteractions},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// dropOrphanedInteractions removes rows written before foreign keys were enforced
// whose user or video has since disappeared.
func dropOrphanedInteractions(db *gorm.DB) error {
	const orphaned = "user_id NOT IN (SELECT id FROM users) OR video_id NOT IN (SELECT id FROM videos)"
	for _, model := range []any{&interactions.Like{}, &interactions.Favorite{}, &interactions.Comment{}} {
		if err := db.Where(orphaned).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
