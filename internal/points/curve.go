package points

import (
	"fmt"
	"math"
)

// Curve 排名衰减曲线：分值只由排名决定，不落库，随时可重算
type Curve struct {
	BasePoints float64 // 第一名分值
	DecayRate  float64 // 每名衰减系数，(0,1)
	FloorValue int     // 尾部保底分值
	TailRank   int     // 达到保底分值的排名，之后全部取保底
}

// DefaultCurve 默认曲线参数
func DefaultCurve() Curve {
	return Curve{
		BasePoints: 250,
		DecayRate:  0.9475,
		FloorValue: 5,
		TailRank:   150,
	}
}

// Validate 校验曲线参数
func (c Curve) Validate() error {
	if c.BasePoints <= 0 {
		return fmt.Errorf("base points must be positive, got %v", c.BasePoints)
	}
	if c.DecayRate <= 0 || c.DecayRate >= 1 {
		return fmt.Errorf("decay rate must be in (0,1), got %v", c.DecayRate)
	}
	if c.FloorValue <= 0 {
		return fmt.Errorf("floor value must be positive, got %d", c.FloorValue)
	}
	if c.TailRank < 1 {
		return fmt.Errorf("tail rank must be at least 1, got %d", c.TailRank)
	}
	if float64(c.FloorValue) > c.BasePoints {
		return fmt.Errorf("floor value %d exceeds base points %v", c.FloorValue, c.BasePoints)
	}
	return nil
}

// PointsAt 计算主榜排名对应的分值，随排名单调不增，且恒为正
// rank 超出 [1, size] 视为不在主榜，返回 0
func (c Curve) PointsAt(rank, size int) int {
	if rank < 1 || rank > size {
		return 0
	}
	if rank >= c.TailRank {
		return c.FloorValue
	}

	value := int(math.Round(c.BasePoints * math.Pow(c.DecayRate, float64(rank-1))))
	if value < c.FloorValue {
		return c.FloorValue
	}
	return value
}
