package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"demonlist/internal/cache"
	"demonlist/internal/model"
	"demonlist/internal/order"
	"demonlist/internal/points"
	"demonlist/internal/record"
	"demonlist/internal/repository"
	"demonlist/pkg/logger"
)

// LevelInfoProvider 提供计分时需要的关卡元数据
type LevelInfoProvider interface {
	LevelInfo(levelID string) (name string, minPercentage int, ok bool)
}

// Aggregator 把关卡顺序、分值曲线和记录状态聚合成玩家总分
// 总分是纯派生数据：内存里的 totals 只是缓存，任何时刻重算都能得到相同结果
type Aggregator struct {
	order   *order.List
	records *record.Store
	curve   points.Curve
	credit  points.CreditStrategy
	levels  LevelInfoProvider
	board   repository.ScoreBoard
	cache   *cache.LocalCache
	logger  *logger.Logger

	mu     sync.RWMutex
	totals map[string]*model.PlayerScore
}

func NewAggregator(
	levelOrder *order.List,
	records *record.Store,
	curve points.Curve,
	credit points.CreditStrategy,
	levels LevelInfoProvider,
	board repository.ScoreBoard,
	localCache *cache.LocalCache,
) *Aggregator {
	return &Aggregator{
		order:   levelOrder,
		records: records,
		curve:   curve,
		credit:  credit,
		levels:  levels,
		board:   board,
		cache:   localCache,
		logger:  logger.NewLogger("aggregator"),
		totals:  make(map[string]*model.PlayerScore),
	}
}

// computeFor 从当前关卡顺序和记录状态算出玩家总分
// 每个 (玩家, 关卡) 只取最优 verified 记录，遗产榜关卡贡献 0 且不进明细
func (a *Aggregator) computeFor(playerID string) *model.PlayerScore {
	snap := a.order.Snapshot()
	size := len(snap.Main)

	rankByLevel := make(map[string]int, size)
	for i, levelID := range snap.Main {
		rankByLevel[levelID] = i + 1
	}

	score := &model.PlayerScore{
		PlayerID:   playerID,
		ComputedAt: time.Now(),
	}

	for _, levelID := range a.records.VerifiedLevels(playerID) {
		rank, onMain := rankByLevel[levelID]
		if !onMain {
			// 遗产榜或已不在榜的关卡不计分
			continue
		}

		best, ok := a.records.BestVerified(playerID, levelID)
		if !ok {
			continue
		}

		name, minPct, ok := a.levels.LevelInfo(levelID)
		if !ok {
			a.logger.Warn("Level metadata missing during score computation",
				"levelID", levelID,
				"playerID", playerID)
			continue
		}

		fraction := a.credit.Fraction(best.Percentage, minPct)
		if fraction <= 0 {
			continue
		}

		earned := float64(a.curve.PointsAt(rank, size)) * fraction
		score.Total += earned
		score.Breakdown = append(score.Breakdown, model.ScoreEntry{
			LevelID:    levelID,
			LevelName:  name,
			Rank:       rank,
			Percentage: best.Percentage,
			Points:     earned,
		})
	}

	sort.Slice(score.Breakdown, func(i, j int) bool {
		return score.Breakdown[i].Rank < score.Breakdown[j].Rank
	})

	return score
}

// RecomputeFor 重算单个玩家总分并更新已提交的缓存值
func (a *Aggregator) RecomputeFor(ctx context.Context, playerID string) *model.PlayerScore {
	score := a.computeFor(playerID)

	a.mu.Lock()
	if score.Total > 0 || len(a.records.VerifiedLevels(playerID)) > 0 {
		a.totals[playerID] = score
	} else {
		delete(a.totals, playerID)
	}
	a.mu.Unlock()

	a.publish(ctx, score)

	if a.cache != nil {
		a.cache.SetPlayerScore(playerID, score)
		a.cache.ClearTopN()
	}

	return score
}

// RecomputeAll 全量重算所有持有 verified 记录的玩家
// 先在旁边算完整张表再整体替换，中途失败不会留下半新半旧的总分
func (a *Aggregator) RecomputeAll(ctx context.Context) {
	players := a.records.AllPlayers()

	fresh := make(map[string]*model.PlayerScore, len(players))
	for _, playerID := range players {
		fresh[playerID] = a.computeFor(playerID)
	}

	a.mu.Lock()
	stale := a.totals
	a.totals = fresh
	a.mu.Unlock()

	for playerID := range stale {
		if _, ok := fresh[playerID]; ok {
			continue
		}
		if err := a.board.RemovePlayer(ctx, playerID); err != nil {
			a.logger.Warn("Failed to remove player from scoreboard",
				"playerID", playerID,
				"error", err)
		}
	}
	for _, score := range fresh {
		a.publish(ctx, score)
	}

	if a.cache != nil {
		a.cache.ClearScores()
		a.cache.ClearTopN()
	}

	a.logger.Info("Leaderboard recomputed", "playerCount", len(fresh))
}

// ScoreFor 读取玩家总分，未缓存时现算
func (a *Aggregator) ScoreFor(playerID string) *model.PlayerScore {
	a.mu.RLock()
	score, ok := a.totals[playerID]
	a.mu.RUnlock()

	if ok {
		return score
	}
	return a.computeFor(playerID)
}

// Rank 按总分降序排列玩家，并列时先比最早 verified 审核时间，再比玩家 ID，
// 保证排行榜顺序稳定可复现
func (a *Aggregator) Rank() []*model.RankInfo {
	a.mu.RLock()
	scores := make([]*model.PlayerScore, 0, len(a.totals))
	for _, score := range a.totals {
		scores = append(scores, score)
	}
	a.mu.RUnlock()

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Total != scores[j].Total {
			return scores[i].Total > scores[j].Total
		}

		ti, iok := a.records.EarliestVerification(scores[i].PlayerID)
		tj, jok := a.records.EarliestVerification(scores[j].PlayerID)
		if iok && jok && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if iok != jok {
			return iok
		}
		return scores[i].PlayerID < scores[j].PlayerID
	})

	rankings := make([]*model.RankInfo, 0, len(scores))
	for i, score := range scores {
		rankings = append(rankings, &model.RankInfo{
			PlayerID: score.PlayerID,
			Rank:     i + 1,
			Total:    score.Total,
		})
	}
	return rankings
}

// Top 排行榜前N名
func (a *Aggregator) Top(n int) []*model.RankInfo {
	rankings := a.Rank()
	if n < len(rankings) {
		rankings = rankings[:n]
	}
	return rankings
}

// Totals 当前全部玩家总分（快照落库用）
func (a *Aggregator) Totals() []*model.PlayerScore {
	a.mu.RLock()
	defer a.mu.RUnlock()

	scores := make([]*model.PlayerScore, 0, len(a.totals))
	for _, score := range a.totals {
		scores = append(scores, score)
	}
	return scores
}

// publish 把总分同步到对外排行榜存储，失败只记日志不中断重算
func (a *Aggregator) publish(ctx context.Context, score *model.PlayerScore) {
	var err error
	if score.Total > 0 {
		err = a.board.PublishScore(ctx, score.PlayerID, score.Total)
	} else {
		err = a.board.RemovePlayer(ctx, score.PlayerID)
	}
	if err != nil {
		a.logger.Error("Failed to publish score to scoreboard",
			"playerID", score.PlayerID,
			"error", err)
	}
}
