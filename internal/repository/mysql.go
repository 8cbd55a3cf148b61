package repository

import (
	"context"
	"fmt"

	"demonlist/internal/model"

	"github.com/jmoiron/sqlx"
)

type MySQLRepository struct {
	db *sqlx.DB
}

func NewMySQLRepository(db *sqlx.DB) *MySQLRepository {
	return &MySQLRepository{
		db: db,
	}
}

// UpsertLevel 插入或更新关卡信息
func (m *MySQLRepository) UpsertLevel(ctx context.Context, level *model.Level) error {
	query := `
		INSERT INTO levels (id, external_id, name, creator, verifier, description, video_id,
			level_rank, is_legacy, min_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			creator = VALUES(creator),
			verifier = VALUES(verifier),
			description = VALUES(description),
			video_id = VALUES(video_id),
			level_rank = VALUES(level_rank),
			is_legacy = VALUES(is_legacy),
			min_percentage = VALUES(min_percentage),
			updated_at = NOW()
	`

	_, err := m.db.ExecContext(ctx, query,
		level.ID, level.ExternalID, level.Name, level.Creator, level.Verifier,
		level.Description, level.VideoID, level.Rank, level.IsLegacy, level.MinPercentage)
	if err != nil {
		return fmt.Errorf("failed to upsert level: %w", err)
	}

	return nil
}

// SaveRanks 批量落库主榜排名和遗产榜标记，放在同一事务里保证排名连续
func (m *MySQLRepository) SaveRanks(ctx context.Context, ranks map[string]int, legacy []string) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rank transaction: %w", err)
	}
	defer tx.Rollback()

	rankQuery := `UPDATE levels SET level_rank = ?, is_legacy = 0, updated_at = NOW() WHERE id = ?`
	for levelID, rank := range ranks {
		if _, err := tx.ExecContext(ctx, rankQuery, rank, levelID); err != nil {
			return fmt.Errorf("failed to save rank for level %s: %w", levelID, err)
		}
	}

	legacyQuery := `UPDATE levels SET level_rank = 0, is_legacy = 1, updated_at = NOW() WHERE id = ?`
	for _, levelID := range legacy {
		if _, err := tx.ExecContext(ctx, legacyQuery, levelID); err != nil {
			return fmt.Errorf("failed to save legacy flag for level %s: %w", levelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rank transaction: %w", err)
	}

	return nil
}

// GetAllLevels 获取全部关卡（启动重建用），主榜按排名排序
func (m *MySQLRepository) GetAllLevels(ctx context.Context) ([]*model.Level, error) {
	var levels []*model.Level
	query := `SELECT id, external_id, name, creator, verifier, description, video_id,
			  level_rank AS ` + "`rank`" + `, is_legacy, min_percentage, created_at, updated_at
			  FROM levels
			  ORDER BY is_legacy, level_rank`

	err := m.db.SelectContext(ctx, &levels, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all levels: %w", err)
	}

	return levels, nil
}

// InsertRecord 插入新提交的记录
func (m *MySQLRepository) InsertRecord(ctx context.Context, rec *model.Record) error {
	query := `
		INSERT INTO records (id, player_id, level_id, percentage, proof_url, status,
			reviewed_by, submitted_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.ExecContext(ctx, query,
		rec.ID, rec.PlayerID, rec.LevelID, rec.Percentage, rec.ProofURL,
		rec.Status, rec.ReviewedBy, rec.SubmittedAt, rec.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// UpdateRecordStatus 更新记录审核状态
func (m *MySQLRepository) UpdateRecordStatus(ctx context.Context, rec *model.Record) error {
	query := `UPDATE records SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`

	result, err := m.db.ExecContext(ctx, query, rec.Status, rec.ReviewedBy, rec.ReviewedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update record status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// GetAllRecords 获取全部记录（启动重建用）
func (m *MySQLRepository) GetAllRecords(ctx context.Context) ([]*model.Record, error) {
	var records []*model.Record
	query := `SELECT id, player_id, level_id, percentage, proof_url, status,
			  reviewed_by, submitted_at, reviewed_at
			  FROM records
			  ORDER BY submitted_at`

	err := m.db.SelectContext(ctx, &records, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all records: %w", err)
	}

	return records, nil
}

// SaveScoreSnapshot 保存排行榜快照
func (m *MySQLRepository) SaveScoreSnapshot(ctx context.Context, snapshotData []byte, playerCount int) error {
	query := `INSERT INTO score_snapshots (snapshot_data, player_count, created_at) VALUES (?, ?, NOW())`

	_, err := m.db.ExecContext(ctx, query, snapshotData, playerCount)
	if err != nil {
		return fmt.Errorf("failed to save score snapshot: %w", err)
	}

	return nil
}

// HealthCheck 健康检查
func (m *MySQLRepository) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close 关闭连接
func (m *MySQLRepository) Close() error {
	return m.db.Close()
}
