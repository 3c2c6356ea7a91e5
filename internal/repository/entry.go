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

// EntryRepository mood entry repository
type EntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntryRepository creates a new mood entry repository
func NewEntryRepository(db *sql.DB, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: logger,
	}
}

// ListEntries 获取用户的全部条目，按日期降序（核心层按需重排）
// 单条记录解码失败时跳过并记录日志，不中断整个读取
func (r *EntryRepository) ListEntries(ctx context.Context, userID string) ([]models.MoodEntry, error) {
	query := `
		SELECT entry_id, entry_date, mood_level, factors, note, photo_ref
		FROM mood_entries
		WHERE user_id = $1
		ORDER BY entry_date DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mood entries: %w", err)
	}
	defer rows.Close()

	var entries []models.MoodEntry
	for rows.Next() {
		var entry models.MoodEntry
		var factorsRaw []byte
		var note sql.NullString
		var photoRef sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Date,
			&entry.MoodLevel,
			&factorsRaw,
			&note,
			&photoRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mood entry: %w", err)
		}

		entry.UserID = userID
		if note.Valid {
			entry.Note = note.String
		}
		if photoRef.Valid {
			entry.PhotoRef = &photoRef.String
		}

		if len(factorsRaw) > 0 {
			if err := json.Unmarshal(factorsRaw, &entry.Factors); err != nil {
				// 跳过损坏记录，继续处理其余条目
				r.logger.Warn("Skipping entry with corrupt factor data",
					zap.String("entry_id", entry.ID),
					zap.String("user_id", userID),
					zap.Error(err),
				)
				continue
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mood entries: %w", err)
	}

	return entries, nil
}

// PutEntry 写入条目并返回存储标识
// entry.ID 为空时生成新ID插入；非空时按ID覆盖（编辑路径）
func (r *EntryRepository) PutEntry(ctx context.Context, userID string, entry models.MoodEntry) (string, error) {
	entryID := entry.ID
	if entryID == "" {
		entryID = uuid.New().String()
	}

	factorsJSON, err := json.Marshal(entry.Factors)
	if err != nil {
		return "", fmt.Errorf("failed to marshal factors: %w", err)
	}

	var photoRef sql.NullString
	if entry.PhotoRef != nil {
		photoRef = sql.NullString{String: *entry.PhotoRef, Valid: true}
	}

	query := `
		INSERT INTO mood_entries (entry_id, user_id, entry_date, mood_level, factors, note, photo_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entry_id) DO UPDATE SET
			entry_date = EXCLUDED.entry_date,
			mood_level = EXCLUDED.mood_level,
			factors    = EXCLUDED.factors,
			note       = EXCLUDED.note,
			photo_ref  = EXCLUDED.photo_ref
	`

	if _, err := r.db.ExecContext(ctx, query,
		entryID, userID, entry.Date, entry.MoodLevel, factorsJSON, entry.Note, photoRef,
	); err != nil {
		return "", fmt.Errorf("failed to put mood entry: %w", err)
	}

	return entryID, nil
}

// ListUserIDs 返回拥有条目的全部用户（每日边界检查用）
func (r *EntryRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM mood_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}

	return userIDs, nil
}

// DeleteEntry 删除指定条目
func (r *EntryRepository) DeleteEntry(ctx context.Context, userID, entryID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM mood_entries WHERE user_id = $1 AND entry_id = $2`,
		userID, entryID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete mood entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mood entry not found: %s", entryID)
	}

	return nil
}
