package record

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"demonlist/internal/model"

	"github.com/google/uuid"
)

// 定义记录操作的错误
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidState      = errors.New("record is not in submitted state")
	ErrInvalidPercentage = errors.New("percentage out of range")
)

// Store 管理通关记录的生命周期：submitted -> verified/rejected
// 状态迁移只发生一次，verified 和 rejected 都是终态；
// 同一 (玩家, 关卡) 允许多条记录并存，计分时只取最优一条
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*model.Record
	byPair  map[pairKey][]*model.Record
	byLevel map[string][]*model.Record

	now func() time.Time
}

type pairKey struct {
	playerID string
	levelID  string
}

// NewStore 创建空的记录存储
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*model.Record),
		byPair:  make(map[pairKey][]*model.Record),
		byLevel: make(map[string][]*model.Record),
		now:     time.Now,
	}
}

// Submit 创建一条 submitted 状态的记录，不影响排行榜
func (s *Store) Submit(playerID, levelID string, percentage int, proofURL string) (*model.Record, error) {
	if percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPercentage, percentage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &model.Record{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		LevelID:     levelID,
		Percentage:  percentage,
		ProofURL:    proofURL,
		Status:      model.RecordSubmitted,
		SubmittedAt: s.now(),
	}
	s.index(rec)
	return cloneRecord(rec), nil
}

// Verify 把 submitted 记录置为 verified
func (s *Store) Verify(recordID, adminID string) (*model.Record, error) {
	return s.transition(recordID, adminID, model.RecordVerified)
}

// Reject 把 submitted 记录置为 rejected，不影响同对已有的 verified 记录
func (s *Store) Reject(recordID, adminID string) (*model.Record, error) {
	return s.transition(recordID, adminID, model.RecordRejected)
}

func (s *Store) transition(recordID, adminID string, target model.RecordStatus) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[recordID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if rec.Status != model.RecordSubmitted {
		return nil, fmt.Errorf("%w: record %s is %s", ErrInvalidState, recordID, rec.Status)
	}

	reviewedAt := s.now()
	rec.Status = target
	rec.ReviewedBy = adminID
	rec.ReviewedAt = &reviewedAt
	return cloneRecord(rec), nil
}

// Get 按 ID 查询记录
func (s *Store) Get(recordID string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[recordID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

// BestVerified 返回 (玩家, 关卡) 上百分比最高的 verified 记录，
// 百分比相同时取审核时间最早的一条，保证结果可复现
func (s *Store) BestVerified(playerID, levelID string) (*model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.Record
	for _, rec := range s.byPair[pairKey{playerID, levelID}] {
		if rec.Status != model.RecordVerified {
			continue
		}
		if best == nil || betterRecord(rec, best) {
			best = rec
		}
	}
	if best == nil {
		return nil, false
	}
	return cloneRecord(best), true
}

// VerifiedLevels 返回玩家持有 verified 记录的所有关卡 ID
func (s *Store) VerifiedLevels(playerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var levels []string
	for key, recs := range s.byPair {
		if key.playerID != playerID {
			continue
		}
		for _, rec := range recs {
			if rec.Status != model.RecordVerified {
				continue
			}
			if _, ok := seen[rec.LevelID]; !ok {
				seen[rec.LevelID] = struct{}{}
				levels = append(levels, rec.LevelID)
			}
			break
		}
	}
	return levels
}

// PlayersWithVerified 返回在任一给定关卡上持有 verified 记录的玩家 ID
func (s *Store) PlayersWithVerified(levelIDs ...string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var players []string
	for _, levelID := range levelIDs {
		for _, rec := range s.byLevel[levelID] {
			if rec.Status != model.RecordVerified {
				continue
			}
			if _, ok := seen[rec.PlayerID]; !ok {
				seen[rec.PlayerID] = struct{}{}
				players = append(players, rec.PlayerID)
			}
		}
	}
	return players
}

// AllPlayers 返回持有任意 verified 记录的玩家 ID
func (s *Store) AllPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var players []string
	for _, rec := range s.byID {
		if rec.Status != model.RecordVerified {
			continue
		}
		if _, ok := seen[rec.PlayerID]; !ok {
			seen[rec.PlayerID] = struct{}{}
			players = append(players, rec.PlayerID)
		}
	}
	return players
}

// EarliestVerification 玩家最早的 verified 审核时间，用于排行榜并列时的次序键
func (s *Store) EarliestVerification(playerID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	found := false
	for key, recs := range s.byPair {
		if key.playerID != playerID {
			continue
		}
		for _, rec := range recs {
			if rec.Status != model.RecordVerified || rec.ReviewedAt == nil {
				continue
			}
			if !found || rec.ReviewedAt.Before(earliest) {
				earliest = *rec.ReviewedAt
				found = true
			}
		}
	}
	return earliest, found
}

// Load 重放一条已持久化的记录（启动重建用），保持原有 ID 和状态
func (s *Store) Load(rec *model.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("cannot load empty record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[rec.ID]; ok {
		return fmt.Errorf("record %s already loaded", rec.ID)
	}
	s.index(cloneRecord(rec))
	return nil
}

// Discard 撤销一条尚未审核的记录，落库失败时回滚用；
// 已进入终态的记录不可撤销
func (s *Store) Discard(recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[recordID]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Status != model.RecordSubmitted {
		return fmt.Errorf("%w: record %s is %s", ErrInvalidState, recordID, rec.Status)
	}

	key := pairKey{rec.PlayerID, rec.LevelID}
	delete(s.byID, recordID)
	s.byPair[key] = removeByID(s.byPair[key], recordID)
	s.byLevel[rec.LevelID] = removeByID(s.byLevel[rec.LevelID], recordID)
	return nil
}

func removeByID(recs []*model.Record, recordID string) []*model.Record {
	for i, rec := range recs {
		if rec.ID == recordID {
			return append(recs[:i], recs[i+1:]...)
		}
	}
	return recs
}

func (s *Store) index(rec *model.Record) {
	key := pairKey{rec.PlayerID, rec.LevelID}
	s.byID[rec.ID] = rec
	s.byPair[key] = append(s.byPair[key], rec)
	s.byLevel[rec.LevelID] = append(s.byLevel[rec.LevelID], rec)
}

// 比较两条 verified 记录的优先级：百分比高者优先，相同时审核时间早者优先，
// 仍相同时按 ID 定序
func betterRecord(a, b *model.Record) bool {
	if a.Percentage != b.Percentage {
		return a.Percentage > b.Percentage
	}
	if a.ReviewedAt != nil && b.ReviewedAt != nil && !a.ReviewedAt.Equal(*b.ReviewedAt) {
		return a.ReviewedAt.Before(*b.ReviewedAt)
	}
	return a.ID < b.ID
}

func cloneRecord(rec *model.Record) *model.Record {
	c := *rec
	if rec.ReviewedAt != nil {
		t := *rec.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}
