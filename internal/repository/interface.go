package repository

import (
	"context"
	"errors"

	"demonlist/internal/model"
)

// 定义通用的错误
var (
	ErrLevelNotFound  = errors.New("level not found")
	ErrRecordNotFound = errors.New("record not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// LevelStore 关卡持久化接口，排序引擎只依赖接口不依赖具体存储
type LevelStore interface {
	UpsertLevel(ctx context.Context, level *model.Level) error
	SaveRanks(ctx context.Context, ranks map[string]int, legacy []string) error
	GetAllLevels(ctx context.Context) ([]*model.Level, error)
}

// RecordPersister 记录持久化接口
type RecordPersister interface {
	InsertRecord(ctx context.Context, rec *model.Record) error
	UpdateRecordStatus(ctx context.Context, rec *model.Record) error
	GetAllRecords(ctx context.Context) ([]*model.Record, error)
}

// ScoreBoard 排行榜发布接口，承载重算后的玩家总分
type ScoreBoard interface {
	PublishScore(ctx context.Context, playerID string, total float64) error
	RemovePlayer(ctx context.Context, playerID string) error
	TopPlayers(ctx context.Context, n int64) ([]*model.RankInfo, error)
	PlayerRank(ctx context.Context, playerID string) (int64, error)
	BoardSize(ctx context.Context) (int64, error)
}
