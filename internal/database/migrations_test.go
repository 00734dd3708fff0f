package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/MarcoPoloResearchLab/vidstream/internal/interactions"
	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsDropsOrphanedInteractions(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	// foreign keys stay off here so orphaned rows can be seeded
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&users.User{}, &catalog.Video{}, &interactions.Like{}, &interactions.Favorite{}, &interactions.Comment{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	user := users.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := database.Create(&user).Error; err != nil {
		testContext.Fatalf("failed to insert user: %v", err)
	}
	video := catalog.Video{Title: "t", URL: "u", Thumbnail: "th", Duration: "1:00", Views: "1", Date: "d", Description: "desc"}
	if err := database.Create(&video).Error; err != nil {
		testContext.Fatalf("failed to insert video: %v", err)
	}

	now := time.Now().UTC()
	seed := []any{
		&interactions.Like{UserID: user.ID, VideoID: video.ID, CreatedAt: now},
		&interactions.Like{UserID: user.ID, VideoID: video.ID + 50, CreatedAt: now},
		&interactions.Favorite{UserID: user.ID + 50, VideoID: video.ID, CreatedAt: now},
		&interactions.Comment{Content: "kept", UserID: user.ID, VideoID: video.ID, CreatedAt: now},
		&interactions.Comment{Content: "orphan", UserID: user.ID + 50, VideoID: video.ID, CreatedAt: now},
	}
	for _, row := range seed {
		if err := database.Omit("User", "Video").Create(row).Error; err != nil {
			testContext.Fatalf("failed to seed %T: %v", row, err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	counts := map[string]struct {
		model any
		want  int64
	}{
		"likes":     {model: &interactions.Like{}, want: 1},
		"favorites": {model: &interactions.Favorite{}, want: 0},
		"comments":  {model: &interactions.Comment{}, want: 1},
	}
	for table, expectation := range counts {
		var count int64
		if err := database.Model(expectation.model).Count(&count).Error; err != nil {
			testContext.Fatalf("failed to count %s: %v", table, err)
		}
		if count != expectation.want {
			testContext.Fatalf("expected %d %s rows, got %d", expectation.want, table, count)
		}
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationDropOrphanedInteractions).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenSQLiteEnforcesForeignKeys(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "open.db")

	database, err := Open(Config{Driver: DriverSQLite, DSN: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	defer sqlDB.Close()

	orphan := interactions.Like{UserID: 41, VideoID: 42, CreatedAt: time.Now().UTC()}
	if err := database.Omit("User", "Video").Create(&orphan).Error; err == nil {
		testContext.Fatalf("expected foreign key violation for orphaned like")
	}

	// reopening must not reapply recorded migrations
	if err := Migrate(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second migrate failed: %v", err)
	}
	var records int64
	if err := database.Model(&migrationRecord{}).Count(&records).Error; err != nil {
		testContext.Fatalf("failed to count migrations: %v", err)
	}
	if records != 1 {
		testContext.Fatalf("expected one migration record, got %d", records)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}, nil); err == nil {
		testContext.Fatalf("expected error for unsupported driver")
	}
}

func TestSQLiteDSNAppendsPragmas(testContext *testing.T) {
	testCases := []struct {
		dsn  string
		want string
	}{
		{dsn: "app.db", want: "app.db?" + sqlitePragmas},
		{dsn: "file:app.db?mode=rwc", want: "file:app.db?mode=rwc&" + sqlitePragmas},
		{dsn: "app.db?_pragma=journal_mode(WAL)", want: "app.db?_pragma=journal_mode(WAL)"},
	}
	for _, testCase := range testCases {
		if got := sqliteDSN(testCase.dsn); got != testCase.want {
			testContext.Fatalf("sqliteDSN(%q) = %q, want %q", testCase.dsn, got, testCase.want)
		}
	}
}
