package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NotifyChannel 是工作进程向 WebSocket 推送消息的 Redis 频道。
const NotifyChannel = "gapgiraffe:notify"

// 通知事件类型。
const (
	EventJobAnalyzed        = "job_analyzed"
	EventApplicationsExport = "applications_exported"
)

// Notification 是统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type Notification struct {
	Event         string   `json:"event"`
	Status        string   `json:"status"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	JobID         int64    `json:"job_id,omitempty"`
	MatchScore    *float64 `json:"match_score,omitempty"`
	DownloadURL   string   `json:"download_url,omitempty"`
	FileName      string   `json:"file_name,omitempty"`
	Rows          int      `json:"rows,omitempty"`
}

// Publisher 是 redis.Client 的发布子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func publishNotification(ctx context.Context, pub Publisher, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	if err := pub.Publish(ctx, NotifyChannel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", NotifyChannel, err)
	}
	return nil
}
