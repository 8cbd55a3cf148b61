package order

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 校验主榜排名恒为 1..N 连续无重复
func assertContiguous(t *testing.T, l *List) {
	t.Helper()

	snap := l.Snapshot()
	seen := make(map[string]bool)
	for i, id := range snap.Main {
		require.False(t, seen[id], "duplicate level %s", id)
		seen[id] = true

		rank, ok := l.RankOf(id)
		require.True(t, ok)
		require.Equal(t, i+1, rank)
	}
	require.Equal(t, len(snap.Main), l.MainSize())
}

func buildList(t *testing.T, ids ...string) *List {
	t.Helper()

	l := NewList()
	for i, id := range ids {
		require.NoError(t, l.InsertMain(id, i+1))
	}
	return l
}

func TestInsertMain(t *testing.T) {
	l := NewList()

	require.NoError(t, l.InsertMain("a", 1))
	require.NoError(t, l.InsertMain("b", 2))
	require.NoError(t, l.InsertMain("c", 1))

	snap := l.Snapshot()
	assert.Equal(t, []string{"c", "a", "b"}, snap.Main)
	assertContiguous(t, l)
}

func TestInsertMainInvalidRank(t *testing.T) {
	l := buildList(t, "a", "b", "c")
	before := l.Snapshot()

	assert.ErrorIs(t, l.InsertMain("d", 0), ErrInvalidRank)
	assert.ErrorIs(t, l.InsertMain("d", 5), ErrInvalidRank)

	// 失败调用不得留下任何变更
	assert.Equal(t, before.Main, l.Snapshot().Main)
	assert.False(t, l.Contains("d"))
}

func TestInsertMainDuplicate(t *testing.T) {
	l := buildList(t, "a")

	assert.ErrorIs(t, l.InsertMain("a", 1), ErrAlreadyExists)

	require.NoError(t, l.InsertLegacy("x"))
	assert.ErrorIs(t, l.InsertMain("x", 1), ErrAlreadyExists)
}

func TestMoveMainDown(t *testing.T) {
	l := buildList(t, "a", "b", "c", "d", "e")

	// 跨多位下移
	require.NoError(t, l.MoveMain("a", 4))

	snap := l.Snapshot()
	assert.Equal(t, []string{"b", "c", "d", "a", "e"}, snap.Main)
	assertContiguous(t, l)
}

func TestMoveMainUp(t *testing.T) {
	l := buildList(t, "a", "b", "c", "d", "e")

	// 跨多位上移
	require.NoError(t, l.MoveMain("d", 2))

	snap := l.Snapshot()
	assert.Equal(t, []string{"a", "d", "b", "c", "e"}, snap.Main)
	assertContiguous(t, l)
}

func TestMoveMainNoop(t *testing.T) {
	l := buildList(t, "a", "b", "c")

	require.NoError(t, l.MoveMain("b", 2))
	assert.Equal(t, []string{"a", "b", "c"}, l.Snapshot().Main)
}

func TestMoveMainErrors(t *testing.T) {
	l := buildList(t, "a", "b", "c")
	before := l.Snapshot()

	assert.ErrorIs(t, l.MoveMain("missing", 1), ErrLevelNotFound)
	assert.ErrorIs(t, l.MoveMain("a", 0), ErrInvalidRank)
	assert.ErrorIs(t, l.MoveMain("a", 4), ErrInvalidRank)

	assert.Equal(t, before.Main, l.Snapshot().Main)
}

func TestPromoteToLegacy(t *testing.T) {
	l := buildList(t, "a", "b", "c")

	require.NoError(t, l.PromoteToLegacy("b"))

	assert.Equal(t, []string{"a", "c"}, l.Snapshot().Main)
	assert.True(t, l.IsLegacy("b"))
	assertContiguous(t, l)

	_, ok := l.RankOf("b")
	assert.False(t, ok)

	// 重复降级报错
	assert.ErrorIs(t, l.PromoteToLegacy("b"), ErrAlreadyLegacy)
}

func TestDemoteFromLegacy(t *testing.T) {
	l := buildList(t, "a", "b", "c")
	require.NoError(t, l.PromoteToLegacy("b"))

	require.NoError(t, l.DemoteFromLegacy("b", 2))

	assert.Equal(t, []string{"a", "b", "c"}, l.Snapshot().Main)
	assert.False(t, l.IsLegacy("b"))
	assertContiguous(t, l)
}

func TestDemoteFromLegacyErrors(t *testing.T) {
	l := buildList(t, "a", "b")
	require.NoError(t, l.InsertLegacy("x"))

	assert.ErrorIs(t, l.DemoteFromLegacy("a", 1), ErrNotLegacy)
	assert.ErrorIs(t, l.DemoteFromLegacy("x", 0), ErrInvalidRank)
	assert.ErrorIs(t, l.DemoteFromLegacy("x", 4), ErrInvalidRank)

	// 失败后 x 仍在遗产榜
	assert.True(t, l.IsLegacy("x"))
	assert.Equal(t, []string{"a", "b"}, l.Snapshot().Main)
}

func TestRemove(t *testing.T) {
	l := buildList(t, "a", "b", "c")
	require.NoError(t, l.InsertLegacy("x"))

	// 主榜摘除收拢空位
	require.NoError(t, l.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, l.Snapshot().Main)
	assertContiguous(t, l)

	// 遗产榜摘除
	require.NoError(t, l.Remove("x"))
	assert.False(t, l.IsLegacy("x"))
	assert.False(t, l.Contains("x"))

	assert.ErrorIs(t, l.Remove("missing"), ErrLevelNotFound)
}

func TestContiguousAfterMixedOperations(t *testing.T) {
	l := NewList()

	for i := 1; i <= 10; i++ {
		require.NoError(t, l.InsertMain(fmt.Sprintf("lv%d", i), i))
	}

	require.NoError(t, l.MoveMain("lv10", 1))
	require.NoError(t, l.MoveMain("lv1", 10))
	require.NoError(t, l.PromoteToLegacy("lv5"))
	require.NoError(t, l.InsertMain("lv11", 3))
	require.NoError(t, l.DemoteFromLegacy("lv5", 7))
	require.NoError(t, l.MoveMain("lv5", 2))
	require.NoError(t, l.PromoteToLegacy("lv11"))

	assertContiguous(t, l)
	assert.Equal(t, 10, l.MainSize())
}

func TestSnapshotIsolation(t *testing.T) {
	l := buildList(t, "a", "b", "c")

	snap := l.Snapshot()
	require.NoError(t, l.MoveMain("c", 1))

	// 快照不受后续修改影响
	assert.Equal(t, []string{"a", "b", "c"}, snap.Main)
	assert.Equal(t, []string{"c", "a", "b"}, l.Snapshot().Main)
}
