package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"demonlist/internal/model"
	"demonlist/internal/order"
	"demonlist/internal/record"
	"demonlist/internal/repository"
	"demonlist/internal/service"
	"demonlist/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义指标
var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	recordSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demonlist_record_submissions_total",
		Help: "Total number of submitted records",
	})

	recordReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demonlist_record_reviews_total",
		Help: "Total number of reviewed records",
	}, []string{"outcome"})

	orderMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demonlist_order_mutations_total",
		Help: "Total number of level order mutations",
	}, []string{"operation"})
)

type HTTPHandler struct {
	svc    *service.DemonlistService
	logger *logger.Logger
}

func NewHTTPHandler(svc *service.DemonlistService) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.NewLogger("http_handler"),
	}
}

// GetMainList 获取主榜
func (h *HTTPHandler) GetMainList(c *gin.Context) {
	start := time.Now()

	levels := h.svc.MainList()

	h.recordMetrics("GET", "/list", "200", start)
	c.JSON(http.StatusOK, ListResponse{
		Count:  len(levels),
		Levels: levels,
	})
}

// GetLegacyList 获取遗产榜
func (h *HTTPHandler) GetLegacyList(c *gin.Context) {
	start := time.Now()

	levels := h.svc.LegacyList()

	h.recordMetrics("GET", "/legacy", "200", start)
	c.JSON(http.StatusOK, ListResponse{
		Count:  len(levels),
		Levels: levels,
	})
}

// AddLevel 新增关卡
func (h *HTTPHandler) AddLevel(c *gin.Context) {
	start := time.Now()

	var req model.AddLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("POST", "/levels", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	view, err := h.svc.AddLevel(c.Request.Context(), &req)
	if err != nil {
		status := h.statusFor(err)
		h.recordMetrics("POST", "/levels", strconv.Itoa(status), start)
		h.logger.Error("Failed to add level", "name", req.Name, "error", err)
		c.JSON(status, ErrorResponse{
			Error:   "Failed to add level",
			Message: err.Error(),
		})
		return
	}

	orderMutations.WithLabelValues("insert").Inc()
	h.recordMetrics("POST", "/levels", "200", start)
	c.JSON(http.StatusOK, view)
}

// MoveLevel 调整关卡排名
func (h *HTTPHandler) MoveLevel(c *gin.Context) {
	start := time.Now()
	levelID := c.Param("levelId")

	var req model.MoveLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("PUT", "/levels/:levelId/move", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.svc.MoveLevel(c.Request.Context(), levelID, req.ToRank); err != nil {
		status := h.statusFor(err)
		h.recordMetrics("PUT", "/levels/:levelId/move", strconv.Itoa(status), start)
		h.logger.Error("Failed to move level", "levelID", levelID, "toRank", req.ToRank, "error", err)
		c.JSON(status, ErrorResponse{
			Error:   "Failed to move level",
			Message: err.Error(),
		})
		return
	}

	orderMutations.WithLabelValues("move").Inc()
	h.recordMetrics("PUT", "/levels/:levelId/move", "200", start)
	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Level moved successfully",
		Timestamp: time.Now(),
	})
}

// PromoteToLegacy 关卡降入遗产榜
func (h *HTTPHandler) PromoteToLegacy(c *gin.Context) {
	start := time.Now()
	levelID := c.Param("levelId")

	if err := h.svc.PromoteToLegacy(c.Request.Context(), levelID); err != nil {
		status := h.statusFor(err)
		h.recordMetrics("POST", "/levels/:levelId/legacy", strconv.Itoa(status), start)
		h.logger.Error("Failed to promote level to legacy", "levelID", levelID, "error", err)
		c.JSON(status, ErrorResponse{
			Error:   "Failed to promote level to legacy",
			Message: err.Error(),
		})
		return
	}

	orderMutations.WithLabelValues("legacy").Inc()
	h.recordMetrics("POST", "/levels/:levelId/legacy", "200", start)
	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Level promoted to legacy",
		Timestamp: time.Now(),
	})
}

// RestoreFromLegacy 遗产榜关卡回归主榜
func (h *HTTPHandler) RestoreFromLegacy(c *gin.Context) {
	start := time.Now()
	levelID := c.Param("levelId")

	var req model.RestoreLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("POST", "/levels/:levelId/restore", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.svc.RestoreFromLegacy(c.Request.Context(), levelID, req.AtRank); err != nil {
		status := h.statusFor(err)
		h.recordMetrics("POST", "/levels/:levelId/restore", strconv.Itoa(status), start)
		h.logger.Error("Failed to restore level", "levelID", levelID, "atRank", req.AtRank, "error", err)
		c.JSON(status, ErrorResponse{
			Error:   "Failed to restore level",
			Message: err.Error(),
		})
		return
	}

	orderMutations.WithLabelValues("restore").Inc()
	h.recordMetrics("POST", "/levels/:levelId/restore", "200", start)
	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Level restored from legacy",
		Timestamp: time.Now(),
	})
}

// SubmitRecord 提交通关记录
func (h *HTTPHandler) SubmitRecord(c *gin.Context) {
	start := time.Now()

	var req model.SubmitRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("POST", "/records", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	rec, err := h.svc.SubmitRecord(c.Request.Context(), &req)
	if err != nil {
		status := h.statusFor(err)
		h.recordMetrics("POST", "/records", strconv.Itoa(status), start)
		h.logger.Error("Failed to submit record",
			"playerID", req.PlayerID,
			"levelID", req.LevelID,
			"error", err)
		c.JSON(status, ErrorResponse{
			Error:   "Failed to submit record",
			Message: err.Error(),
		})
		return
	}

	recordSubmissions.Inc()
	h.recordMetrics("POST", "/records", "200", start)
	c.JSON(http.StatusOK, rec)
}

// VerifyRecord 审核通过记录
func (h *HTTPHandler) VerifyRecord(c *gin.Context) {
	h.reviewRecord(c, "verify")
}

// RejectRecord 驳回记录
func (h *HTTPHandler) RejectRecord(c *gin.Context) {
	h.reviewRecord(c, "reject")
}

func (h *HTTPHandler) reviewRecord(c *gin.Context, outcome string) {
	start := time.Now()
	recordID := c.Param("recordId")
	endpoint := "/records/:recordId/" + outcome

	var req model.ReviewRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("POST", endpoint, "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	var rec *model.Record
	var err error
	if outcome == "verify" {
		rec, err = h.svc.VerifyRecord(c.Request.Context(), recordID, req.AdminID)
	} else {
		rec, err = h.svc.RejectRecord(c.Request.Context(), recordID, req.AdminID)
	}

	if err != nil {
		status := h.statusFor(err)
		h.recordMetrics("POST", endpoint, strconv.Itoa(status), start)
		h.logger.Error("Failed to review record",
			"recordID", recordID,
			"outcome", outcome,
			"error", err)
		c.JSON(status, ErrorResponse{
			Error:   "Failed to review record",
			Message: err.Error(),
		})
		return
	}

	recordReviews.WithLabelValues(outcome).Inc()
	h.recordMetrics("POST", endpoint, "200", start)
	c.JSON(http.StatusOK, rec)
}

// GetPlayerScore 查询玩家总分
func (h *HTTPHandler) GetPlayerScore(c *gin.Context) {
	start := time.Now()
	playerID := c.Param("playerId")

	if playerID == "" {
		h.recordMetrics("GET", "/players/:playerId/score", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "PlayerID is required",
			Message: "PlayerID parameter cannot be empty",
		})
		return
	}

	score := h.svc.PlayerScore(playerID)

	h.recordMetrics("GET", "/players/:playerId/score", "200", start)
	c.JSON(http.StatusOK, score)
}

// GetTopN 获取排行榜前N名
func (h *HTTPHandler) GetTopN(c *gin.Context) {
	start := time.Now()

	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n <= 0 {
		h.recordMetrics("GET", "/leaderboard/top/:n", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid N parameter",
			Message: "N must be a positive integer",
		})
		return
	}

	// 限制最大查询数量
	if n > 1000 {
		n = 1000
	}

	rankings := h.svc.Leaderboard(n)

	h.recordMetrics("GET", "/leaderboard/top/:n", "200", start)
	c.JSON(http.StatusOK, TopNResponse{
		Count:    len(rankings),
		Rankings: rankings,
	})
}

// GetScoreboard 读取对外排行榜存储里的前N名
func (h *HTTPHandler) GetScoreboard(c *gin.Context) {
	start := time.Now()

	n, err := strconv.ParseInt(c.Param("n"), 10, 64)
	if err != nil || n <= 0 {
		h.recordMetrics("GET", "/scoreboard/:n", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid N parameter",
			Message: "N must be a positive integer",
		})
		return
	}

	if n > 1000 {
		n = 1000
	}

	rankings, err := h.svc.PublishedTop(c.Request.Context(), n)
	if err != nil {
		h.recordMetrics("GET", "/scoreboard/:n", "500", start)
		h.logger.Error("Failed to read published scoreboard", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to read scoreboard",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("GET", "/scoreboard/:n", "200", start)
	c.JSON(http.StatusOK, TopNResponse{
		Count:    len(rankings),
		Rankings: rankings,
	})
}

// GetPlayerRank 读取玩家在对外排行榜里的名次
func (h *HTTPHandler) GetPlayerRank(c *gin.Context) {
	start := time.Now()
	playerID := c.Param("playerId")

	rank, total, err := h.svc.PublishedRank(c.Request.Context(), playerID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			h.recordMetrics("GET", "/players/:playerId/rank", "404", start)
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "Player not found",
				Message: "The specified player is not on the scoreboard",
			})
			return
		}

		h.recordMetrics("GET", "/players/:playerId/rank", "500", start)
		h.logger.Error("Failed to read player rank", "playerID", playerID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to read player rank",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("GET", "/players/:playerId/rank", "200", start)
	c.JSON(http.StatusOK, PlayerRankResponse{
		PlayerID: playerID,
		Rank:     rank,
		Total:    total,
	})
}

// Rebuild 从持久化存储重建内存状态
func (h *HTTPHandler) Rebuild(c *gin.Context) {
	start := time.Now()

	if err := h.svc.Rebuild(c.Request.Context()); err != nil {
		h.recordMetrics("POST", "/rebuild", "500", start)
		h.logger.Error("Failed to rebuild", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to rebuild",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("POST", "/rebuild", "200", start)
	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Rebuild completed successfully",
		Timestamp: time.Now(),
	})
}

// HealthCheck 健康检查
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	start := time.Now()

	h.recordMetrics("GET", "/health", "200", start)
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		MainList:  h.svc.MainListSize(),
	})
}

// GetCacheStats 获取缓存统计
func (h *HTTPHandler) GetCacheStats(c *gin.Context) {
	start := time.Now()

	stats := h.svc.GetCacheStats()

	h.recordMetrics("GET", "/cache/stats", "200", start)
	c.JSON(http.StatusOK, CacheStatsResponse{
		Stats: stats,
	})
}

// statusFor 把引擎的类型化错误映射成 HTTP 状态码
func (h *HTTPHandler) statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidRank),
		errors.Is(err, record.ErrInvalidPercentage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLevelNotFound),
		errors.Is(err, service.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrAlreadyLegacy),
		errors.Is(err, order.ErrNotLegacy),
		errors.Is(err, order.ErrAlreadyExists),
		errors.Is(err, record.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// 记录指标
func (h *HTTPHandler) recordMetrics(method, endpoint, status string, start time.Time) {
	duration := time.Since(start).Seconds()

	requestCounter.WithLabelValues(method, endpoint, status).Inc()
	requestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// 响应结构体
type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

type ListResponse struct {
	Count  int                `json:"count"`
	Levels []*model.LevelView `json:"levels"`
}

type TopNResponse struct {
	Count    int               `json:"count"`
	Rankings []*model.RankInfo `json:"rankings"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	MainList  int       `json:"mainList"`
}

type PlayerRankResponse struct {
	PlayerID string `json:"playerId"`
	Rank     int64  `json:"rank"`
	Total    int64  `json:"total"`
}

type CacheStatsResponse struct {
	Stats map[string]interface{} `json:"stats"`
}
