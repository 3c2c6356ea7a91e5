package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"moodlog-insights/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewRepository weekly review repository
type ReviewRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReviewRepository creates a new weekly review repository
func NewReviewRepository(db *sql.DB, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// ListReviews 获取用户的全部周报，按周起始日降序
// 单条记录解码失败时跳过并记录日志
func (r *ReviewRepository) ListReviews(ctx context.Context, userID string) ([]models.WeeklyReview, error) {
	query := `
		SELECT review_id, week_start, week_end, summary, highlights, photo_refs, notes, viewed, created_at
		FROM weekly_reviews
		WHERE user_id = $1
		ORDER BY week_start DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.WeeklyReview
	for rows.Next() {
		var review models.WeeklyReview
		var summaryRaw, highlightsRaw, photoRefsRaw, notesRaw []byte

		if err := rows.Scan(
			&review.ID,
			&review.WeekStart,
			&review.WeekEnd,
			&summaryRaw,
			&highlightsRaw,
			&photoRefsRaw,
			&notesRaw,
			&review.Viewed,
			&review.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan weekly review: %w", err)
		}

		review.UserID = userID
		if err := decodeReviewPayload(&review, summaryRaw, highlightsRaw, photoRefsRaw, notesRaw); err != nil {
			r.logger.Warn("Skipping review with corrupt payload",
				zap.String("review_id", review.ID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weekly reviews: %w", err)
	}

	return reviews, nil
}

// PutReview 写入周报并返回存储标识
// review.ID 非空时按ID覆盖（编辑重建路径保留原ID）
func (r *ReviewRepository) PutReview(ctx context.Context, userID string, review models.WeeklyReview) (string, error) {
	reviewID := review.ID
	if reviewID == "" {
		reviewID = uuid.New().String()
	}

	summaryJSON, err := json.Marshal(review.Summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal review summary: %w", err)
	}
	highlightsJSON, err := json.Marshal(review.Highlights)
	if err != nil {
		return "", fmt.Errorf("failed to marshal review highlights: %w", err)
	}
	photoRefsJSON, err := json.Marshal(review.PhotoRefs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal review photo refs: %w", err)
	}
	notesJSON, err := json.Marshal(review.Notes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal review notes: %w", err)
	}

	query := `
		INSERT INTO weekly_reviews (review_id, user_id, week_start, week_end, summary, highlights, photo_refs, notes, viewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (review_id) DO UPDATE SET
			summary    = EXCLUDED.summary,
			highlights = EXCLUDED.highlights,
			photo_refs = EXCLUDED.photo_refs,
			notes      = EXCLUDED.notes,
			viewed     = EXCLUDED.viewed
	`

	if _, err := r.db.ExecContext(ctx, query,
		reviewID, userID, review.WeekStart, review.WeekEnd,
		summaryJSON, highlightsJSON, photoRefsJSON, notesJSON, review.Viewed,
	); err != nil {
		return "", fmt.Errorf("failed to put weekly review: %w", err)
	}

	return reviewID, nil
}

func decodeReviewPayload(review *models.WeeklyReview, summaryRaw, highlightsRaw, photoRefsRaw, notesRaw []byte) error {
	if len(summaryRaw) > 0 {
		if err := json.Unmarshal(summaryRaw, &review.Summary); err != nil {
			return fmt.Errorf("corrupt summary: %w", err)
		}
	}
	if len(highlightsRaw) > 0 {
		if err := json.Unmarshal(highlightsRaw, &review.Highlights); err != nil {
			return fmt.Errorf("corrupt highlights: %w", err)
		}
	}
	if len(photoRefsRaw) > 0 {
		if err := json.Unmarshal(photoRefsRaw, &review.PhotoRefs); err != nil {
			return fmt.Errorf("corrupt photo refs: %w", err)
		}
	}
	if len(notesRaw) > 0 {
		if err := json.Unmarshal(notesRaw, &review.Notes); err != nil {
			return fmt.Errorf("corrupt notes: %w", err)
		}
	}
	return nil
}
