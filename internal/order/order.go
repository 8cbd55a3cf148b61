package order

import (
	"errors"
	"sync"
)

// 定义排序操作的错误
var (
	ErrInvalidRank   = errors.New("rank out of valid range")
	ErrLevelNotFound = errors.New("level not found in order")
	ErrAlreadyExists = errors.New("level already present in order")
	ErrAlreadyLegacy = errors.New("level is already legacy")
	ErrNotLegacy     = errors.New("level is not legacy")
)

// List 维护主榜的全序和遗产榜的无序集合
// 主榜排名恒为 1..N 连续无空洞；所有校验在任何修改之前完成，
// 校验失败时状态保持不变
type List struct {
	mu     sync.RWMutex
	main   []string            // 主榜关卡 ID，下标 i 即排名 i+1
	legacy map[string]struct{} // 遗产榜关卡 ID 集合
}

// NewList 创建空的关卡排序
func NewList() *List {
	return &List{
		legacy: make(map[string]struct{}),
	}
}

// Snapshot 主榜与遗产榜的只读快照
type Snapshot struct {
	Main   []string
	Legacy []string
}

// InsertMain 在指定排名插入新关卡，atRank 合法范围 [1, N+1]
// 原排名 >= atRank 的关卡依次后移一位
func (l *List) InsertMain(levelID string, atRank int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(levelID) >= 0 {
		return ErrAlreadyExists
	}
	if _, ok := l.legacy[levelID]; ok {
		return ErrAlreadyExists
	}
	return l.insertLocked(levelID, atRank)
}

// MoveMain 把主榜关卡移动到新排名，toRank 合法范围 [1, N]
// 先摘除并收拢空位，再按插入语义放入，保证跨多位移动不会错位
func (l *List) MoveMain(levelID string, toRank int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(levelID)
	if idx < 0 {
		return ErrLevelNotFound
	}
	if toRank < 1 || toRank > len(l.main) {
		return ErrInvalidRank
	}
	if idx+1 == toRank {
		return nil
	}

	l.main = append(l.main[:idx], l.main[idx+1:]...)
	return l.insertLocked(levelID, toRank)
}

// PromoteToLegacy 把主榜关卡移入遗产榜，摘除排名并收拢空位
func (l *List) PromoteToLegacy(levelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.legacy[levelID]; ok {
		return ErrAlreadyLegacy
	}

	idx := l.indexOf(levelID)
	if idx < 0 {
		return ErrLevelNotFound
	}

	l.main = append(l.main[:idx], l.main[idx+1:]...)
	l.legacy[levelID] = struct{}{}
	return nil
}

// DemoteFromLegacy 把遗产榜关卡按插入语义放回主榜
func (l *List) DemoteFromLegacy(levelID string, atRank int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.legacy[levelID]; !ok {
		return ErrNotLegacy
	}
	if err := l.insertLocked(levelID, atRank); err != nil {
		return err
	}
	delete(l.legacy, levelID)
	return nil
}

// InsertLegacy 直接把新关卡放入遗产榜
func (l *List) InsertLegacy(levelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(levelID) >= 0 {
		return ErrAlreadyExists
	}
	if _, ok := l.legacy[levelID]; ok {
		return ErrAlreadyExists
	}
	l.legacy[levelID] = struct{}{}
	return nil
}

// Remove 把关卡从主榜或遗产榜整体摘除，主榜摘除后收拢空位
func (l *List) Remove(levelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx := l.indexOf(levelID); idx >= 0 {
		l.main = append(l.main[:idx], l.main[idx+1:]...)
		return nil
	}
	if _, ok := l.legacy[levelID]; ok {
		delete(l.legacy, levelID)
		return nil
	}
	return ErrLevelNotFound
}

// RankOf 查询主榜关卡排名（1-based），遗产榜和未知关卡返回 0
func (l *List) RankOf(levelID string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.indexOf(levelID)
	if idx < 0 {
		return 0, false
	}
	return idx + 1, true
}

// IsLegacy 查询关卡是否在遗产榜
func (l *List) IsLegacy(levelID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.legacy[levelID]
	return ok
}

// Contains 查询关卡是否已登记（主榜或遗产榜）
func (l *List) Contains(levelID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.indexOf(levelID) >= 0 {
		return true
	}
	_, ok := l.legacy[levelID]
	return ok
}

// MainSize 主榜关卡数量
func (l *List) MainSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.main)
}

// Snapshot 拷贝当前主榜顺序和遗产榜集合，读取方不会看到中间状态
func (l *List) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Main:   make([]string, len(l.main)),
		Legacy: make([]string, 0, len(l.legacy)),
	}
	copy(snap.Main, l.main)
	for id := range l.legacy {
		snap.Legacy = append(snap.Legacy, id)
	}
	return snap
}

func (l *List) indexOf(levelID string) int {
	for i, id := range l.main {
		if id == levelID {
			return i
		}
	}
	return -1
}

func (l *List) insertLocked(levelID string, atRank int) error {
	if atRank < 1 || atRank > len(l.main)+1 {
		return ErrInvalidRank
	}

	l.main = append(l.main, "")
	copy(l.main[atRank:], l.main[atRank-1:])
	l.main[atRank-1] = levelID
	return nil
}
