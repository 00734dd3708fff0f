package interactions

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testFixture struct {
	service *Service
	db      *gorm.DB
	userID  int64
	otherID int64
	videoID int64
}

func newFixture(t *testing.T, logger *zap.Logger) testFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "interactions.db")), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&users.User{}, &catalog.Video{}, &Like{}, &Favorite{}, &Comment{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, HashCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create catalog service: %v", err)
	}

	ctx := context.Background()
	alice, err := userService.Register(ctx, users.Registration{Username: "alice", Email: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("failed to register alice: %v", err)
	}
	bob, err := userService.Register(ctx, users.Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("failed to register bob: %v", err)
	}
	video, err := catalogService.CreateVideo(ctx, catalog.VideoInput{
		Title:       "intro",
		URL:         "https://cdn.example.com/intro.mp4",
		Thumbnail:   "https://cdn.example.com/intro.jpg",
		Duration:    "1:00",
		Views:       "10",
		Date:        "2024-01-01",
		Description: "intro video",
	})
	if err != nil {
		t.Fatalf("failed to seed video: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Users:    userService,
		Videos:   catalogService,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to create interactions service: %v", err)
	}
	return testFixture{service: service, db: db, userID: alice.ID, otherID: bob.ID, videoID: video.ID}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); !errors.Is(err, errMissingDatabase) {
		t.Fatalf("expected missing database error, got %v", err)
	}
	if _, err := NewService(ServiceConfig{Database: &gorm.DB{}}); !errors.Is(err, errMissingUsers) {
		t.Fatalf("expected missing users error, got %v", err)
	}
}

func TestToggleLikeTwiceLeavesNoRow(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	first, err := fixture.service.ToggleLike(ctx, fixture.userID, fixture.videoID)
	if err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	if !first.Active || first.Like.ID == 0 {
		t.Fatalf("expected like to be created, got %+v", first)
	}
	if count := countRows(t, fixture.db, &Like{}); count != 1 {
		t.Fatalf("expected one like row, got %d", count)
	}

	second, err := fixture.service.ToggleLike(ctx, fixture.userID, fixture.videoID)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if second.Active {
		t.Fatalf("expected like to be removed")
	}
	if count := countRows(t, fixture.db, &Like{}); count != 0 {
		t.Fatalf("expected no like rows, got %d", count)
	}
}

func TestToggleFavoriteIndependentOfLike(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fixture.service.ToggleLike(ctx, fixture.userID, fixture.videoID); err != nil {
		t.Fatalf("like toggle failed: %v", err)
	}
	outcome, err := fixture.service.ToggleFavorite(ctx, fixture.userID, fixture.videoID)
	if err != nil {
		t.Fatalf("favorite toggle failed: %v", err)
	}
	if !outcome.Active {
		t.Fatalf("expected favorite to be created")
	}

	favorites, err := fixture.service.ListFavorites(ctx, fixture.userID)
	if err != nil {
		t.Fatalf("list favorites failed: %v", err)
	}
	if len(favorites) != 1 || favorites[0].Video == nil || favorites[0].Video.Title != "intro" {
		t.Fatalf("expected favorite with video metadata, got %+v", favorites)
	}
	likes, err := fixture.service.ListLikes(ctx, fixture.userID)
	if err != nil {
		t.Fatalf("list likes failed: %v", err)
	}
	if len(likes) != 1 {
		t.Fatalf("expected one like, got %d", len(likes))
	}
	others, err := fixture.service.ListLikes(ctx, fixture.otherID)
	if err != nil {
		t.Fatalf("list likes for other user failed: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("expected no likes for other user, got %d", len(others))
	}
}

func TestToggleRejectsUnknownReferences(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	testCases := []struct {
		name    string
		userID  int64
		videoID int64
		want    error
	}{
		{name: "unknown-video", userID: fixture.userID, videoID: fixture.videoID + 100, want: svcerr.ErrNotFound},
		{name: "unknown-user", userID: fixture.userID + 100, videoID: fixture.videoID, want: svcerr.ErrNotFound},
		{name: "missing-user", userID: 0, videoID: fixture.videoID, want: svcerr.ErrValidation},
		{name: "missing-both", userID: 0, videoID: 0, want: svcerr.ErrValidation},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := fixture.service.ToggleLike(ctx, testCase.userID, testCase.videoID)
			if !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
		})
	}
	if count := countRows(t, fixture.db, &Like{}); count != 0 {
		t.Fatalf("expected no like rows, got %d", count)
	}
}

func TestUniqueIndexRejectsDuplicatePair(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fixture.service.ToggleFavorite(ctx, fixture.userID, fixture.videoID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	duplicate := Favorite{UserID: fixture.userID, VideoID: fixture.videoID, CreatedAt: time.Now().UTC()}
	err := fixture.db.Omit("User", "Video").Create(&duplicate).Error
	if err == nil {
		t.Fatalf("expected unique index violation")
	}
	if !svcerr.IsDuplicateKey(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestConcurrentTogglesLeaveAtMostOneRow(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	const workers = 8
	var waitGroup sync.WaitGroup
	errs := make(chan error, workers)
	for index := 0; index < workers; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, err := fixture.service.ToggleLike(ctx, fixture.userID, fixture.videoID); err != nil && !errors.Is(err, svcerr.ErrConflict) {
				errs <- err
			}
		}()
	}
	waitGroup.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected toggle error: %v", err)
	}
	if count := countRows(t, fixture.db, &Like{}); count > 1 {
		t.Fatalf("expected at most one like row, got %d", count)
	}
}

func TestRemoveLikeReportsMissingRow(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	if err := fixture.service.RemoveLike(ctx, fixture.userID, fixture.videoID); !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fixture.service.ToggleLike(ctx, fixture.userID, fixture.videoID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if err := fixture.service.RemoveLike(ctx, fixture.userID, fixture.videoID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if count := countRows(t, fixture.db, &Like{}); count != 0 {
		t.Fatalf("expected no like rows, got %d", count)
	}
}

func TestAddCommentUnknownUserCreatesNothing(t *testing.T) {
	fixture := newFixture(t, nil)

	_, err := fixture.service.AddComment(context.Background(), CommentInput{
		Content: "hello",
		UserID:  fixture.userID + 999,
		VideoID: fixture.videoID,
	})
	if !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	serviceErr, _ := svcerr.As(err)
	if serviceErr.Message() != "user or video not found" {
		t.Fatalf("unexpected message %q", serviceErr.Message())
	}
	if count := countRows(t, fixture.db, &Comment{}); count != 0 {
		t.Fatalf("expected no comment rows, got %d", count)
	}
}

func TestAddCommentValidatesFields(t *testing.T) {
	fixture := newFixture(t, nil)

	_, err := fixture.service.AddComment(context.Background(), CommentInput{Content: "  "})
	if !errors.Is(err, svcerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	serviceErr, _ := svcerr.As(err)
	if serviceErr.Message() != "missing required fields: content, userId, videoId" {
		t.Fatalf("unexpected message %q", serviceErr.Message())
	}
}

func TestListCommentsOrderedWithAuthors(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	authors := []int64{fixture.userID, fixture.otherID, fixture.userID}
	for index, author := range authors {
		if _, err := fixture.service.AddComment(ctx, CommentInput{
			Content: []string{"first", "second", "third"}[index],
			UserID:  author,
			VideoID: fixture.videoID,
		}); err != nil {
			t.Fatalf("add comment %d failed: %v", index, err)
		}
	}

	comments, err := fixture.service.ListComments(ctx, fixture.videoID)
	if err != nil {
		t.Fatalf("list comments failed: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("expected three comments, got %d", len(comments))
	}
	for index, want := range []string{"first", "second", "third"} {
		if comments[index].Content != want {
			t.Fatalf("comment %d: expected %q, got %q", index, want, comments[index].Content)
		}
	}
	if comments[1].User == nil || comments[1].User.Username != "bob" {
		t.Fatalf("expected author bob on second comment, got %+v", comments[1].User)
	}
	if comments[0].User.PasswordHash == "" {
		t.Fatalf("expected preloaded user row")
	}
}

func TestDeleteCommentEnforcesOwnership(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	comment, err := fixture.service.AddComment(ctx, CommentInput{Content: "mine", UserID: fixture.userID, VideoID: fixture.videoID})
	if err != nil {
		t.Fatalf("add comment failed: %v", err)
	}
	if comment.User == nil || comment.User.Username != "alice" {
		t.Fatalf("expected comment to carry its author, got %+v", comment.User)
	}

	if _, err := fixture.service.DeleteComment(ctx, fixture.otherID, comment.ID); !errors.Is(err, svcerr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	var remaining int64
	if err := fixture.db.Model(&Comment{}).Where("id = ?", comment.ID).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected comment to survive a delete by another user, got %d rows", remaining)
	}
	deleted, err := fixture.service.DeleteComment(ctx, fixture.userID, comment.ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted.ID != comment.ID {
		t.Fatalf("expected deleted comment %d, got %d", comment.ID, deleted.ID)
	}
	if _, err := fixture.service.DeleteComment(ctx, fixture.userID, comment.ID); !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStoreFailureIsLogged(t *testing.T) {
	core, observed := observer.New(zap.ErrorLevel)
	fixture := newFixture(t, zap.New(core))

	if err := fixture.db.Migrator().DropTable(&Comment{}); err != nil {
		t.Fatalf("failed to drop comments table: %v", err)
	}
	_, err := fixture.service.ListComments(context.Background(), fixture.videoID)
	if !errors.Is(err, svcerr.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	entries := observed.FilterMessage("interactions service error").All()
	if len(entries) != 1 {
		t.Fatalf("expected one logged error, got %d", len(entries))
	}
	if entries[0].ContextMap()["operation"] != opListComments {
		t.Fatalf("unexpected operation field %v", entries[0].ContextMap()["operation"])
	}
}
