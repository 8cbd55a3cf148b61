package utils

import (
	"time"
)

// ValidPercentage 校验百分比是否在 [0, 100] 范围内
func ValidPercentage(percentage int) bool {
	return percentage >= 0 && percentage <= 100
}

// SafeString 安全的字符串处理，防止空指针
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SafeTime 安全的时间处理，防止空指针
func SafeTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// ContainsString 检查字符串切片是否包含指定字符串
func ContainsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// Min 返回最小值
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max 返回最大值
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Clamp 限制值在指定范围内
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
