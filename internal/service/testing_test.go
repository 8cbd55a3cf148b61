package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"demonlist/internal/model"
	"demonlist/internal/points"
	"demonlist/internal/repository"

	"github.com/stretchr/testify/require"
)

// 内存版持久化实现，测试专用

type memLevelStore struct {
	mu     sync.Mutex
	levels map[string]*model.Level
	ranks  map[string]int
	legacy map[string]bool
}

func newMemLevelStore() *memLevelStore {
	return &memLevelStore{
		levels: make(map[string]*model.Level),
		ranks:  make(map[string]int),
		legacy: make(map[string]bool),
	}
}

func (m *memLevelStore) UpsertLevel(_ context.Context, level *model.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *level
	m.levels[level.ID] = &clone
	return nil
}

func (m *memLevelStore) SaveRanks(_ context.Context, ranks map[string]int, legacy []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ranks = make(map[string]int, len(ranks))
	m.legacy = make(map[string]bool, len(legacy))
	for id, rank := range ranks {
		m.ranks[id] = rank
		if level, ok := m.levels[id]; ok {
			level.Rank = rank
			level.IsLegacy = false
		}
	}
	for _, id := range legacy {
		m.legacy[id] = true
		if level, ok := m.levels[id]; ok {
			level.Rank = 0
			level.IsLegacy = true
		}
	}
	return nil
}

func (m *memLevelStore) GetAllLevels(_ context.Context) ([]*model.Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	levels := make([]*model.Level, 0, len(m.levels))
	for _, level := range m.levels {
		clone := *level
		levels = append(levels, &clone)
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].IsLegacy != levels[j].IsLegacy {
			return !levels[i].IsLegacy
		}
		return levels[i].Rank < levels[j].Rank
	})
	return levels, nil
}

type memRecordStore struct {
	mu      sync.Mutex
	records map[string]*model.Record
	order   []string
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{
		records: make(map[string]*model.Record),
	}
}

func (m *memRecordStore) InsertRecord(_ context.Context, rec *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *rec
	m.records[rec.ID] = &clone
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *memRecordStore) UpdateRecordStatus(_ context.Context, rec *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[rec.ID]
	if !ok {
		return repository.ErrRecordNotFound
	}
	stored.Status = rec.Status
	stored.ReviewedBy = rec.ReviewedBy
	stored.ReviewedAt = rec.ReviewedAt
	return nil
}

func (m *memRecordStore) GetAllRecords(_ context.Context) ([]*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]*model.Record, 0, len(m.order))
	for _, id := range m.order {
		clone := *m.records[id]
		records = append(records, &clone)
	}
	return records, nil
}

type memBoard struct {
	mu     sync.Mutex
	scores map[string]float64
}

func newMemBoard() *memBoard {
	return &memBoard{
		scores: make(map[string]float64),
	}
}

func (m *memBoard) PublishScore(_ context.Context, playerID string, total float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scores[playerID] = total
	return nil
}

func (m *memBoard) RemovePlayer(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.scores, playerID)
	return nil
}

func (m *memBoard) TopPlayers(_ context.Context, n int64) ([]*model.RankInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		id    string
		total float64
	}
	entries := make([]entry, 0, len(m.scores))
	for id, total := range m.scores {
		entries = append(entries, entry{id, total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].total != entries[j].total {
			return entries[i].total > entries[j].total
		}
		return entries[i].id < entries[j].id
	})

	if n < int64(len(entries)) {
		entries = entries[:n]
	}

	rankings := make([]*model.RankInfo, 0, len(entries))
	for i, e := range entries {
		rankings = append(rankings, &model.RankInfo{
			PlayerID: e.id,
			Rank:     i + 1,
			Total:    e.total,
		})
	}
	return rankings, nil
}

func (m *memBoard) PlayerRank(ctx context.Context, playerID string) (int64, error) {
	rankings, err := m.TopPlayers(ctx, 1<<30)
	if err != nil {
		return -1, err
	}
	for _, info := range rankings {
		if info.PlayerID == playerID {
			return int64(info.Rank), nil
		}
	}
	return -1, repository.ErrPlayerNotFound
}

func (m *memBoard) BoardSize(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.scores)), nil
}

// flakyLevelStore 可按开关让落库失败，验证回滚路径
type flakyLevelStore struct {
	*memLevelStore
	failUpsert bool
}

func (f *flakyLevelStore) UpsertLevel(ctx context.Context, level *model.Level) error {
	if f.failUpsert {
		return errors.New("mysql down")
	}
	return f.memLevelStore.UpsertLevel(ctx, level)
}

// flakyRecordStore 记下最后一次尝试落库的记录 ID，便于断言回滚
type flakyRecordStore struct {
	*memRecordStore
	failInsert bool
	lastTried  string
}

func (f *flakyRecordStore) InsertRecord(ctx context.Context, rec *model.Record) error {
	f.lastTried = rec.ID
	if f.failInsert {
		return errors.New("mysql down")
	}
	return f.memRecordStore.InsertRecord(ctx, rec)
}

type testEnv struct {
	svc    *DemonlistService
	levels *memLevelStore
	recs   *memRecordStore
	board  *memBoard
	curve  points.Curve
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		levels: newMemLevelStore(),
		recs:   newMemRecordStore(),
		board:  newMemBoard(),
		curve:  points.DefaultCurve(),
	}
	env.svc = NewDemonlistService(Options{
		Curve:                env.curve,
		Credit:               points.LinearCredit{},
		LevelStore:           env.levels,
		RecordStore:          env.recs,
		Board:                env.board,
		DefaultMinPercentage: 100,
	})
	return env
}

// addMainLevel 按顺位追加主榜关卡并返回其 ID
func (e *testEnv) addMainLevel(t *testing.T, name string, atRank, minPct int) string {
	t.Helper()

	view, err := e.svc.AddLevel(context.Background(), &model.AddLevelRequest{
		Name:          name,
		Creator:       "creator",
		AtRank:        atRank,
		MinPercentage: minPct,
	})
	require.NoError(t, err)
	return view.ID
}

// verifiedRecord 提交并直接审核通过一条记录
func (e *testEnv) verifiedRecord(t *testing.T, playerID, levelID string, percentage int) *model.Record {
	t.Helper()

	rec, err := e.svc.SubmitRecord(context.Background(), &model.SubmitRecordRequest{
		PlayerID:   playerID,
		LevelID:    levelID,
		Percentage: percentage,
	})
	require.NoError(t, err)

	verified, err := e.svc.VerifyRecord(context.Background(), rec.ID, "admin")
	require.NoError(t, err)
	return verified
}
