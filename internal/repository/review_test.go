package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moodlog-insights/internal/models"
)

func newReviewRepo(t *testing.T) (*ReviewRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReviewRepository(db, zap.NewNop()), mock
}

func TestListReviews(t *testing.T) {
	repo, mock := newReviewRepo(t)

	weekStart := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)
	createdAt := weekEnd.Add(6 * time.Hour)

	rows := sqlmock.NewRows([]string{"review_id", "week_start", "week_end", "summary", "highlights", "photo_refs", "notes", "viewed", "created_at"}).
		AddRow("review-1", weekStart, weekEnd,
			[]byte(`{"average":6,"highest":8,"lowest":4}`),
			[]byte(`[{"entry_id":"entry-1","mood_level":8}]`),
			[]byte(`["photos/wed.jpg"]`),
			[]byte(`["rough start"]`),
			false, createdAt)

	mock.ExpectQuery("SELECT review_id, week_start, week_end, summary, highlights, photo_refs, notes, viewed, created_at").
		WithArgs("user-1").
		WillReturnRows(rows)

	reviews, err := repo.ListReviews(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	r := reviews[0]
	assert.Equal(t, "review-1", r.ID)
	assert.Equal(t, "user-1", r.UserID)
	assert.Equal(t, weekStart, r.WeekStart)
	assert.InDelta(t, 6.0, r.Summary.Average, 1e-9)
	require.Len(t, r.Highlights, 1)
	assert.Equal(t, "entry-1", r.Highlights[0].EntryID)
	assert.Equal(t, []string{"photos/wed.jpg"}, r.PhotoRefs)
	assert.Equal(t, []string{"rough start"}, r.Notes)
	assert.False(t, r.Viewed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReviews_SkipsCorruptPayload(t *testing.T) {
	repo, mock := newReviewRepo(t)

	weekStart := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)

	rows := sqlmock.NewRows([]string{"review_id", "week_start", "week_end", "summary", "highlights", "photo_refs", "notes", "viewed", "created_at"}).
		AddRow("review-bad", weekStart, weekEnd, []byte(`{broken`), nil, nil, nil, false, weekEnd).
		AddRow("review-ok", weekStart.AddDate(0, 0, -7), weekStart, []byte(`{"average":5}`), nil, nil, nil, true, weekStart)

	mock.ExpectQuery("SELECT review_id, week_start, week_end, summary, highlights, photo_refs, notes, viewed, created_at").
		WithArgs("user-1").
		WillReturnRows(rows)

	reviews, err := repo.ListReviews(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "review-ok", reviews[0].ID)
	assert.True(t, reviews[0].Viewed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutReview_GeneratesIDWhenEmpty(t *testing.T) {
	repo, mock := newReviewRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weekly_reviews")).
		WithArgs(sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	review := models.WeeklyReview{
		WeekStart: time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		WeekEnd:   time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC),
		Summary:   models.MoodSummary{Average: 6, Highest: 8, Lowest: 4},
	}
	reviewID, err := repo.PutReview(context.Background(), "user-1", review)
	require.NoError(t, err)
	assert.NotEmpty(t, reviewID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutReview_PreservesExistingID(t *testing.T) {
	repo, mock := newReviewRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weekly_reviews")).
		WithArgs("review-1", "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	review := models.WeeklyReview{
		ID:        "review-1",
		WeekStart: time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		WeekEnd:   time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC),
		Viewed:    true,
	}
	reviewID, err := repo.PutReview(context.Background(), "user-1", review)
	require.NoError(t, err)
	assert.Equal(t, "review-1", reviewID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
