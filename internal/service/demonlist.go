package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"demonlist/internal/cache"
	"demonlist/internal/model"
	"demonlist/internal/notify"
	"demonlist/internal/order"
	"demonlist/internal/points"
	"demonlist/internal/record"
	"demonlist/internal/repository"
	"demonlist/pkg/logger"
	"demonlist/pkg/utils"

	"github.com/google/uuid"
)

// 定义服务级别的错误
var (
	ErrLevelNotFound  = errors.New("level not found")
	ErrRecordNotFound = errors.New("record not found")
)

// DemonlistService 排序与计分引擎的编排层
// 所有修改操作（调整关卡顺序、审核记录）串行执行，"改顺序 + 重算"
// 是一个不可拆分的单元，读取方只会看到修改前或修改后的完整状态
type DemonlistService struct {
	levelOrder *order.List
	records    *record.Store
	curve      points.Curve
	credit     points.CreditStrategy
	aggregator *Aggregator

	levelStore  repository.LevelStore
	recordStore repository.RecordPersister
	board       repository.ScoreBoard
	notifier    notify.Notifier
	cache       *cache.LocalCache
	logger      *logger.Logger

	defaultMinPercentage int
	snapshotInterval     time.Duration
	lastSnapshot         time.Time

	mu       sync.Mutex // 串行化全部修改操作
	levelsMu sync.RWMutex
	levels   map[string]*model.Level
}

// Options 服务装配参数
type Options struct {
	Curve                points.Curve
	Credit               points.CreditStrategy
	LevelStore           repository.LevelStore
	RecordStore          repository.RecordPersister
	Board                repository.ScoreBoard
	Notifier             notify.Notifier
	EnableCache          bool
	CacheSize            int
	DefaultMinPercentage int
	SnapshotInterval     time.Duration
}

func NewDemonlistService(opts Options) *DemonlistService {
	if opts.Credit == nil {
		opts.Credit = points.LinearCredit{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NopNotifier{}
	}
	if opts.DefaultMinPercentage < 1 || opts.DefaultMinPercentage > 100 {
		opts.DefaultMinPercentage = 100
	}

	s := &DemonlistService{
		levelOrder:           order.NewList(),
		records:              record.NewStore(),
		curve:                opts.Curve,
		credit:               opts.Credit,
		levelStore:           opts.LevelStore,
		recordStore:          opts.RecordStore,
		board:                opts.Board,
		notifier:             opts.Notifier,
		logger:               logger.NewLogger("demonlist_service"),
		defaultMinPercentage: opts.DefaultMinPercentage,
		snapshotInterval:     opts.SnapshotInterval,
		levels:               make(map[string]*model.Level),
	}

	if opts.EnableCache {
		cacheSize := opts.CacheSize
		if cacheSize <= 0 {
			cacheSize = 10000
		}
		s.cache = cache.NewLocalCache(cacheSize)
	}

	s.aggregator = NewAggregator(s.levelOrder, s.records, s.curve, s.credit, s, s.board, s.cache)

	return s
}

// LevelInfo 实现 LevelInfoProvider，给聚合器提供关卡元数据
func (s *DemonlistService) LevelInfo(levelID string) (string, int, bool) {
	s.levelsMu.RLock()
	defer s.levelsMu.RUnlock()

	level, ok := s.levels[levelID]
	if !ok {
		return "", 0, false
	}
	return level.Name, level.MinPercentage, true
}

// AddLevel 新增关卡：按指定排名进主榜，或直接进遗产榜
func (s *DemonlistService) AddLevel(ctx context.Context, req *model.AddLevelRequest) (*model.LevelView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	minPct := req.MinPercentage
	if minPct < 1 || minPct > 100 {
		minPct = s.defaultMinPercentage
	}

	level := &model.Level{
		ID:            uuid.NewString(),
		ExternalID:    req.ExternalID,
		Name:          req.Name,
		Creator:       req.Creator,
		Verifier:      req.Verifier,
		Description:   req.Description,
		VideoID:       req.VideoID,
		IsLegacy:      req.AsLegacy,
		MinPercentage: minPct,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if req.AsLegacy {
		if err := s.levelOrder.InsertLegacy(level.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.levelOrder.InsertMain(level.ID, req.AtRank); err != nil {
			return nil, err
		}
	}

	s.levelsMu.Lock()
	s.levels[level.ID] = level
	s.levelsMu.Unlock()

	// 落库失败必须回滚内存插入：半生效的关卡会让主榜排名
	// 和已发布的玩家总分彼此对不上
	if err := s.levelStore.UpsertLevel(ctx, level); err != nil {
		if rbErr := s.levelOrder.Remove(level.ID); rbErr != nil {
			s.logger.Error("Failed to roll back level insertion", "levelID", level.ID, "error", rbErr)
		}
		s.levelsMu.Lock()
		delete(s.levels, level.ID)
		s.levelsMu.Unlock()

		s.logger.Error("Failed to persist new level", "levelID", level.ID, "error", err)
		return nil, fmt.Errorf("failed to persist level: %w", err)
	}
	s.persistRanks(ctx)

	// 插入会使后续关卡整体后移，全量重算保证分值一致
	if !req.AsLegacy {
		s.aggregator.RecomputeAll(ctx)
	}

	s.notifier.Notify(notify.NewEvent(notify.EventLevelAdded, map[string]interface{}{
		"levelId": level.ID,
		"name":    level.Name,
		"rank":    req.AtRank,
		"legacy":  req.AsLegacy,
	}))

	s.logger.Info("Level added",
		"levelID", level.ID,
		"name", level.Name,
		"rank", req.AtRank,
		"legacy", req.AsLegacy)

	return s.levelViewLocked(level.ID), nil
}

// MoveLevel 调整主榜关卡排名并重算排行榜
func (s *DemonlistService) MoveLevel(ctx context.Context, levelID string, toRank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownLevel(levelID) {
		return ErrLevelNotFound
	}

	if err := s.levelOrder.MoveMain(levelID, toRank); err != nil {
		return err
	}

	s.persistRanks(ctx)
	s.aggregator.RecomputeAll(ctx)
	s.touchLevel(levelID)

	s.notifier.Notify(notify.NewEvent(notify.EventLevelMoved, map[string]interface{}{
		"levelId": levelID,
		"toRank":  toRank,
	}))

	s.logger.Info("Level moved", "levelID", levelID, "toRank", toRank)
	return nil
}

// PromoteToLegacy 把主榜关卡降入遗产榜，其记录从此不再计分
func (s *DemonlistService) PromoteToLegacy(ctx context.Context, levelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownLevel(levelID) {
		return ErrLevelNotFound
	}

	if err := s.levelOrder.PromoteToLegacy(levelID); err != nil {
		return err
	}

	s.setLegacyFlag(levelID, true)
	s.persistRanks(ctx)
	s.aggregator.RecomputeAll(ctx)

	s.notifier.Notify(notify.NewEvent(notify.EventLevelLegacy, map[string]interface{}{
		"levelId": levelID,
	}))

	s.logger.Info("Level promoted to legacy", "levelID", levelID)
	return nil
}

// RestoreFromLegacy 把遗产榜关卡按指定排名放回主榜
func (s *DemonlistService) RestoreFromLegacy(ctx context.Context, levelID string, atRank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownLevel(levelID) {
		return ErrLevelNotFound
	}

	if err := s.levelOrder.DemoteFromLegacy(levelID, atRank); err != nil {
		return err
	}

	s.setLegacyFlag(levelID, false)
	s.persistRanks(ctx)
	s.aggregator.RecomputeAll(ctx)

	s.notifier.Notify(notify.NewEvent(notify.EventLevelRestored, map[string]interface{}{
		"levelId": levelID,
		"atRank":  atRank,
	}))

	s.logger.Info("Level restored from legacy", "levelID", levelID, "atRank", atRank)
	return nil
}

// SubmitRecord 提交记录，进入待审核状态，不影响排行榜
func (s *DemonlistService) SubmitRecord(ctx context.Context, req *model.SubmitRecordRequest) (*model.Record, error) {
	if !utils.ValidPercentage(req.Percentage) {
		return nil, fmt.Errorf("%w: %d", record.ErrInvalidPercentage, req.Percentage)
	}
	if !s.knownLevel(req.LevelID) {
		return nil, ErrLevelNotFound
	}

	rec, err := s.records.Submit(req.PlayerID, req.LevelID, req.Percentage, req.ProofURL)
	if err != nil {
		return nil, err
	}

	// 落库失败撤销内存里的记录，否则数据库里不存在的记录
	// 仍可被查询甚至审核通过
	if err := s.recordStore.InsertRecord(ctx, rec); err != nil {
		if rbErr := s.records.Discard(rec.ID); rbErr != nil {
			s.logger.Error("Failed to discard unpersisted record", "recordID", rec.ID, "error", rbErr)
		}

		s.logger.Error("Failed to persist submitted record", "recordID", rec.ID, "error", err)
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}

	s.logger.Info("Record submitted",
		"recordID", rec.ID,
		"playerID", req.PlayerID,
		"levelID", req.LevelID,
		"percentage", req.Percentage)

	return rec, nil
}

// VerifyRecord 审核通过记录并重算该玩家总分
func (s *DemonlistService) VerifyRecord(ctx context.Context, recordID, adminID string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.records.Verify(recordID, adminID)
	if err != nil {
		if errors.Is(err, record.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if err := s.recordStore.UpdateRecordStatus(ctx, rec); err != nil {
		s.logger.Error("Failed to persist record status", "recordID", rec.ID, "error", err)
	}

	// 只有该玩家的总分会变化
	s.aggregator.RecomputeFor(ctx, rec.PlayerID)

	s.notifier.Notify(notify.NewEvent(notify.EventRecordVerified, map[string]interface{}{
		"recordId":   rec.ID,
		"playerId":   rec.PlayerID,
		"levelId":    rec.LevelID,
		"percentage": rec.Percentage,
	}))

	s.logger.Info("Record verified",
		"recordID", rec.ID,
		"playerID", rec.PlayerID,
		"admin", adminID)

	return rec, nil
}

// RejectRecord 驳回记录，不影响任何玩家总分
func (s *DemonlistService) RejectRecord(ctx context.Context, recordID, adminID string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.records.Reject(recordID, adminID)
	if err != nil {
		if errors.Is(err, record.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if err := s.recordStore.UpdateRecordStatus(ctx, rec); err != nil {
		s.logger.Error("Failed to persist record status", "recordID", rec.ID, "error", err)
	}

	s.notifier.Notify(notify.NewEvent(notify.EventRecordRejected, map[string]interface{}{
		"recordId": rec.ID,
		"playerId": rec.PlayerID,
		"levelId":  rec.LevelID,
	}))

	s.logger.Info("Record rejected",
		"recordID", rec.ID,
		"playerID", rec.PlayerID,
		"admin", adminID)

	return rec, nil
}

// GetRecord 查询记录
func (s *DemonlistService) GetRecord(recordID string) (*model.Record, error) {
	rec, err := s.records.Get(recordID)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// PlayerScore 查询玩家总分和得分明细
func (s *DemonlistService) PlayerScore(playerID string) *model.PlayerScore {
	if s.cache != nil {
		if cached, ok := s.cache.GetPlayerScore(playerID); ok {
			return cached
		}
	}

	score := s.aggregator.ScoreFor(playerID)

	if s.cache != nil {
		s.cache.SetPlayerScore(playerID, score)
	}
	return score
}

// Leaderboard 排行榜前N名
func (s *DemonlistService) Leaderboard(n int) []*model.RankInfo {
	if s.cache != nil {
		if cached, ok := s.cache.GetTopN(n); ok {
			return cached
		}
	}

	rankings := s.aggregator.Top(n)

	if s.cache != nil {
		s.cache.SetTopN(n, rankings)
	}
	return rankings
}

// PublishedTop 读取对外排行榜存储里的前N名
func (s *DemonlistService) PublishedTop(ctx context.Context, n int64) ([]*model.RankInfo, error) {
	return s.board.TopPlayers(ctx, n)
}

// PublishedRank 读取玩家在对外排行榜存储里的名次和榜单人数
func (s *DemonlistService) PublishedRank(ctx context.Context, playerID string) (rank, total int64, err error) {
	rank, err = s.board.PlayerRank(ctx, playerID)
	if err != nil {
		return 0, 0, err
	}

	total, err = s.board.BoardSize(ctx)
	if err != nil {
		return 0, 0, err
	}

	return rank, total, nil
}

// MainList 主榜视图，按排名排序并带派生分值
func (s *DemonlistService) MainList() []*model.LevelView {
	snap := s.levelOrder.Snapshot()
	size := len(snap.Main)

	s.levelsMu.RLock()
	defer s.levelsMu.RUnlock()

	views := make([]*model.LevelView, 0, size)
	for i, levelID := range snap.Main {
		level, ok := s.levels[levelID]
		if !ok {
			continue
		}
		v := *level
		v.Rank = i + 1
		views = append(views, &model.LevelView{
			Level:  v,
			Points: s.curve.PointsAt(i+1, size),
		})
	}
	return views
}

// LegacyList 遗产榜视图，分值恒为 0
func (s *DemonlistService) LegacyList() []*model.LevelView {
	snap := s.levelOrder.Snapshot()

	s.levelsMu.RLock()
	defer s.levelsMu.RUnlock()

	views := make([]*model.LevelView, 0, len(snap.Legacy))
	for _, levelID := range snap.Legacy {
		level, ok := s.levels[levelID]
		if !ok {
			continue
		}
		v := *level
		v.Rank = 0
		views = append(views, &model.LevelView{
			Level:  v,
			Points: 0,
		})
	}
	return views
}

// LevelRank 查询关卡当前排名
func (s *DemonlistService) LevelRank(levelID string) (int, error) {
	if !s.knownLevel(levelID) {
		return 0, ErrLevelNotFound
	}
	rank, _ := s.levelOrder.RankOf(levelID)
	return rank, nil
}

// MainListSize 主榜关卡数量
func (s *DemonlistService) MainListSize() int {
	return s.levelOrder.MainSize()
}

// RecomputeAll 全量重算排行榜，幂等操作，崩溃后直接重跑即可
func (s *DemonlistService) RecomputeAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aggregator.RecomputeAll(ctx)
}

// Rebuild 从持久化存储重建内存状态并全量重算（启动和数据恢复用）
func (s *DemonlistService) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Starting rebuild from persistent storage")

	levels, err := s.levelStore.GetAllLevels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load levels: %w", err)
	}

	for _, level := range levels {
		if s.knownLevel(level.ID) {
			continue
		}
		if level.IsLegacy {
			err = s.levelOrder.InsertLegacy(level.ID)
		} else {
			err = s.levelOrder.InsertMain(level.ID, s.levelOrder.MainSize()+1)
		}
		if err != nil {
			return fmt.Errorf("failed to rebuild order for level %s: %w", level.ID, err)
		}

		s.levelsMu.Lock()
		s.levels[level.ID] = level
		s.levelsMu.Unlock()
	}

	records, err := s.recordStore.GetAllRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	for _, rec := range records {
		if err := s.records.Load(rec); err != nil {
			s.logger.Warn("Skipping record during rebuild", "recordID", rec.ID, "error", err)
		}
	}

	s.aggregator.RecomputeAll(ctx)

	s.logger.Info("Rebuild completed",
		"levelCount", len(levels),
		"recordCount", len(records))

	return nil
}

// GetCacheStats 获取缓存统计
func (s *DemonlistService) GetCacheStats() map[string]interface{} {
	if s.cache != nil {
		return s.cache.GetStats()
	}
	return map[string]interface{}{
		"enabled": false,
	}
}

// StartBackgroundTasks 启动周期快照任务
func (s *DemonlistService) StartBackgroundTasks() {
	if s.snapshotInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			if time.Since(s.lastSnapshot) > s.snapshotInterval {
				s.createSnapshot(context.Background())
			}
		}
	}()
}

// createSnapshot 把当前全部玩家总分落库存档
func (s *DemonlistService) createSnapshot(ctx context.Context) {
	type snapshotter interface {
		SaveScoreSnapshot(ctx context.Context, snapshotData []byte, playerCount int) error
	}

	store, ok := s.levelStore.(snapshotter)
	if !ok {
		return
	}

	totals := s.aggregator.Totals()
	data, err := json.Marshal(totals)
	if err != nil {
		s.logger.Error("Failed to marshal score snapshot", "error", err)
		return
	}

	if err := store.SaveScoreSnapshot(ctx, data, len(totals)); err != nil {
		s.logger.Error("Failed to save score snapshot", "error", err)
		return
	}

	s.lastSnapshot = time.Now()
	s.logger.Info("Score snapshot created", "playerCount", len(totals))
}

func (s *DemonlistService) knownLevel(levelID string) bool {
	s.levelsMu.RLock()
	defer s.levelsMu.RUnlock()

	_, ok := s.levels[levelID]
	return ok
}

func (s *DemonlistService) setLegacyFlag(levelID string, legacy bool) {
	s.levelsMu.Lock()
	defer s.levelsMu.Unlock()

	if level, ok := s.levels[levelID]; ok {
		level.IsLegacy = legacy
		level.UpdatedAt = time.Now()
	}
}

func (s *DemonlistService) touchLevel(levelID string) {
	s.levelsMu.Lock()
	defer s.levelsMu.Unlock()

	if level, ok := s.levels[levelID]; ok {
		level.UpdatedAt = time.Now()
	}
}

// persistRanks 把当前排名批量落库，失败只记日志，重启后的 Rebuild 会纠正
func (s *DemonlistService) persistRanks(ctx context.Context) {
	snap := s.levelOrder.Snapshot()

	ranks := make(map[string]int, len(snap.Main))
	for i, levelID := range snap.Main {
		ranks[levelID] = i + 1
	}

	if err := s.levelStore.SaveRanks(ctx, ranks, snap.Legacy); err != nil {
		s.logger.Error("Failed to persist level ranks", "error", err)
	}
}

// levelViewLocked 组装单个关卡的视图，调用方需持有 s.mu
func (s *DemonlistService) levelViewLocked(levelID string) *model.LevelView {
	s.levelsMu.RLock()
	defer s.levelsMu.RUnlock()

	level, ok := s.levels[levelID]
	if !ok {
		return nil
	}

	v := *level
	rank, _ := s.levelOrder.RankOf(levelID)
	v.Rank = rank

	return &model.LevelView{
		Level:  v,
		Points: s.curve.PointsAt(rank, s.levelOrder.MainSize()),
	}
}
