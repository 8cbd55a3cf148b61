package points

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurveMonotonic(t *testing.T) {
	curve := DefaultCurve()
	require.NoError(t, curve.Validate())

	const size = 200
	prev := curve.PointsAt(1, size)
	assert.Greater(t, prev, 0)

	for rank := 2; rank <= size; rank++ {
		current := curve.PointsAt(rank, size)
		assert.Greater(t, current, 0, "rank %d", rank)
		assert.LessOrEqual(t, current, prev, "rank %d", rank)
		prev = current
	}
}

func TestCurveFloorAtTail(t *testing.T) {
	curve := DefaultCurve()
	const size = 500

	for rank := curve.TailRank; rank <= size; rank++ {
		assert.Equal(t, curve.FloorValue, curve.PointsAt(rank, size), "rank %d", rank)
	}
}

func TestCurveOutOfRange(t *testing.T) {
	curve := DefaultCurve()

	assert.Equal(t, 0, curve.PointsAt(0, 10))
	assert.Equal(t, 0, curve.PointsAt(-1, 10))
	assert.Equal(t, 0, curve.PointsAt(11, 10))
	assert.Equal(t, 0, curve.PointsAt(1, 0))
}

func TestCurveTopRankValue(t *testing.T) {
	curve := DefaultCurve()

	// 第一名取基准分值
	assert.Equal(t, 250, curve.PointsAt(1, 100))
}

func TestCurveValidate(t *testing.T) {
	tests := []struct {
		name    string
		curve   Curve
		wantErr bool
	}{
		{"default", DefaultCurve(), false},
		{"zero base", Curve{BasePoints: 0, DecayRate: 0.9, FloorValue: 1, TailRank: 10}, true},
		{"decay too high", Curve{BasePoints: 100, DecayRate: 1.0, FloorValue: 1, TailRank: 10}, true},
		{"decay too low", Curve{BasePoints: 100, DecayRate: 0, FloorValue: 1, TailRank: 10}, true},
		{"zero floor", Curve{BasePoints: 100, DecayRate: 0.9, FloorValue: 0, TailRank: 10}, true},
		{"bad tail", Curve{BasePoints: 100, DecayRate: 0.9, FloorValue: 1, TailRank: 0}, true},
		{"floor above base", Curve{BasePoints: 10, DecayRate: 0.9, FloorValue: 20, TailRank: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.curve.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLinearCreditFraction(t *testing.T) {
	credit := LinearCredit{}

	tests := []struct {
		name       string
		percentage int
		minPct     int
		want       float64
	}{
		{"full completion", 100, 100, 1.0},
		{"full completion low min", 100, 50, 1.0},
		{"above min", 85, 60, 0.85},
		{"exactly min", 60, 60, 0.60},
		{"below min", 59, 60, 0},
		{"min 100 rejects partial", 99, 100, 0},
		{"negative percentage", -1, 60, 0},
		{"over 100", 101, 60, 0},
		{"invalid min falls back to full only", 80, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, credit.Fraction(tt.percentage, tt.minPct), 1e-9)
		})
	}
}

func TestFullOnlyCredit(t *testing.T) {
	credit := FullOnlyCredit{}

	assert.Equal(t, 1.0, credit.Fraction(100, 100))
	assert.Equal(t, 0.0, credit.Fraction(99, 1))
	assert.Equal(t, 0.0, credit.Fraction(0, 1))
}
