package model

import (
	"time"
)

// RecordStatus 记录审核状态
type RecordStatus string

const (
	RecordSubmitted RecordStatus = "submitted"
	RecordVerified  RecordStatus = "verified"
	RecordRejected  RecordStatus = "rejected"
)

// Level 关卡信息
type Level struct {
	ID            string    `json:"id" db:"id"`
	ExternalID    string    `json:"external_id" db:"external_id"`
	Name          string    `json:"name" db:"name"`
	Creator       string    `json:"creator" db:"creator"`
	Verifier      string    `json:"verifier,omitempty" db:"verifier"`
	Description   string    `json:"description,omitempty" db:"description"`
	VideoID       string    `json:"video_id,omitempty" db:"video_id"`
	Rank          int       `json:"rank,omitempty" db:"rank"` // 仅主榜关卡有排名
	IsLegacy      bool      `json:"is_legacy" db:"is_legacy"`
	MinPercentage int       `json:"min_percentage" db:"min_percentage"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Record 玩家通关记录
type Record struct {
	ID          string       `json:"id" db:"id"`
	PlayerID    string       `json:"player_id" db:"player_id"`
	LevelID     string       `json:"level_id" db:"level_id"`
	Percentage  int          `json:"percentage" db:"percentage"`
	ProofURL    string       `json:"proof_url,omitempty" db:"proof_url"`
	Status      RecordStatus `json:"status" db:"status"`
	ReviewedBy  string       `json:"reviewed_by,omitempty" db:"reviewed_by"`
	SubmittedAt time.Time    `json:"submitted_at" db:"submitted_at"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

// ScoreEntry 单个关卡对玩家总分的贡献
type ScoreEntry struct {
	LevelID    string  `json:"levelId"`
	LevelName  string  `json:"levelName,omitempty"`
	Rank       int     `json:"rank"`
	Percentage int     `json:"percentage"`
	Points     float64 `json:"points"`
}

// PlayerScore 玩家总分（派生数据，随关卡顺序和记录状态重算）
type PlayerScore struct {
	PlayerID   string       `json:"playerId"`
	Total      float64      `json:"total"`
	Breakdown  []ScoreEntry `json:"breakdown"`
	ComputedAt time.Time    `json:"computedAt"`
}

// RankInfo 排行榜单行信息
type RankInfo struct {
	PlayerID string  `json:"playerId"`
	Rank     int     `json:"rank"`
	Total    float64 `json:"total"`
}

// LevelView 主榜/遗产榜展示信息，含派生分值
type LevelView struct {
	Level
	Points int `json:"points"`
}

// AddLevelRequest 新增关卡请求
type AddLevelRequest struct {
	ExternalID    string `json:"externalId"`
	Name          string `json:"name" binding:"required"`
	Creator       string `json:"creator" binding:"required"`
	Verifier      string `json:"verifier"`
	Description   string `json:"description"`
	VideoID       string `json:"videoId"`
	AtRank        int    `json:"atRank"`
	AsLegacy      bool   `json:"asLegacy"`
	MinPercentage int    `json:"minPercentage"`
}

// MoveLevelRequest 调整关卡排名请求
type MoveLevelRequest struct {
	ToRank int `json:"toRank" binding:"required"`
}

// RestoreLevelRequest 遗产榜回归主榜请求
type RestoreLevelRequest struct {
	AtRank int `json:"atRank" binding:"required"`
}

// SubmitRecordRequest 提交记录请求
type SubmitRecordRequest struct {
	PlayerID   string `json:"playerId" binding:"required"`
	LevelID    string `json:"levelId" binding:"required"`
	Percentage int    `json:"percentage"`
	ProofURL   string `json:"proofUrl"`
}

// ReviewRecordRequest 审核记录请求
type ReviewRecordRequest struct {
	AdminID string `json:"adminId" binding:"required"`
}
