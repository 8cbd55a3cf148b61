package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"demonlist/pkg/logger"
)

// EventType 通知事件类型
type EventType string

const (
	EventLevelAdded     EventType = "level_added"
	EventLevelMoved     EventType = "level_moved"
	EventLevelLegacy    EventType = "level_legacy"
	EventLevelRestored  EventType = "level_restored"
	EventRecordVerified EventType = "record_verified"
	EventRecordRejected EventType = "record_rejected"
)

// Event 发给外部 webhook 的事件载荷
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Notifier 通知能力接口，调用方不关心投递方式也不等待结果
type Notifier interface {
	Notify(event Event)
}

// NopNotifier 空实现，未配置 webhook 时使用
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// WebhookNotifier 异步 POST 事件到配置的 webhook 地址
// 投递失败只记日志，绝不阻塞或影响调用方
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.NewLogger("webhook_notifier"),
	}
}

// Notify 异步投递事件
func (w *WebhookNotifier) Notify(event Event) {
	go w.deliver(event)
}

func (w *WebhookNotifier) deliver(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("Failed to marshal webhook event",
			"type", event.Type,
			"error", err)
		return
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("Failed to deliver webhook event",
			"type", event.Type,
			"error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("Webhook endpoint returned non-success status",
			"type", event.Type,
			"status", resp.StatusCode)
		return
	}

	w.logger.Debug("Webhook event delivered", "type", event.Type)
}

// NewEvent 构造带时间戳的事件
func NewEvent(eventType EventType, payload map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
