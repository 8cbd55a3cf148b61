package points

// CreditStrategy 部分通关折算策略：把记录百分比折算成 [0,1] 的计分系数
type CreditStrategy interface {
	Fraction(percentage, minPercentage int) float64
}

// LinearCredit 默认折算策略：100% 计满分，达到关卡最低百分比的按比例折算，
// 未达到最低百分比不计分
type LinearCredit struct{}

func (LinearCredit) Fraction(percentage, minPercentage int) float64 {
	if percentage < 0 || percentage > 100 {
		return 0
	}
	if percentage == 100 {
		return 1.0
	}
	if minPercentage < 1 || minPercentage > 100 {
		minPercentage = 100
	}
	if percentage >= minPercentage {
		return float64(percentage) / 100.0
	}
	return 0
}

// FullOnlyCredit 只认 100% 通关的折算策略
type FullOnlyCredit struct{}

func (FullOnlyCredit) Fraction(percentage, minPercentage int) float64 {
	if percentage == 100 {
		return 1.0
	}
	return 0
}
