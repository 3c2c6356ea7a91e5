package repository

import (
	"context"
	"database/sql"
	"fmt"

	"moodlog-insights/internal/models"

	"go.uber.org/zap"
)

// UnlockRepository achievement unlock-state repository (durable remote store)
type UnlockRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUnlockRepository creates a new unlock-state repository
func NewUnlockRepository(db *sql.DB, logger *zap.Logger) *UnlockRepository {
	return &UnlockRepository{
		db:     db,
		logger: logger,
	}
}

// LoadUnlocked 读取用户已解锁的成就集合
func (r *UnlockRepository) LoadUnlocked(ctx context.Context, userID string) ([]models.UnlockedAchievement, error) {
	query := `
		SELECT achievement_type, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocked achievements: %w", err)
	}
	defer rows.Close()

	var unlocked []models.UnlockedAchievement
	for rows.Next() {
		row := models.UnlockedAchievement{UserID: userID}
		if err := rows.Scan(&row.Type, &row.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlocked achievement: %w", err)
		}
		unlocked = append(unlocked, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unlocked achievements: %w", err)
	}

	return unlocked, nil
}

// SaveUnlocked 写入新解锁的成就
// 解锁集合单调增长：已存在的行保持不变（ON CONFLICT DO NOTHING），永不删除
func (r *UnlockRepository) SaveUnlocked(ctx context.Context, userID string, types []models.AchievementType) error {
	query := `
		INSERT INTO user_achievements (user_id, achievement_type, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, achievement_type) DO NOTHING
	`

	for _, t := range types {
		if _, err := r.db.ExecContext(ctx, query, userID, t); err != nil {
			return fmt.Errorf("failed to save unlocked achievement %s: %w", t, err)
		}
	}

	return nil
}
