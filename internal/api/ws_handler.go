package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"gapgiraffe/internal/api/middleware"
	"gapgiraffe/internal/worker"
)

// NotificationSubscriber 是 redis.Client 的订阅子集。
type NotificationSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

var _ NotificationSubscriber = (*redis.Client)(nil)

// WsHandler 将工作进程的通知（分析完成、导出完成）推送给扩展端。
type WsHandler struct {
	subscriber     NotificationSubscriber
	token          string
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
	pingInterval   time.Duration
}

// NewWsHandler 构造 WebSocket 处理器。token 为空时连接无需鉴权。
func NewWsHandler(subscriber NotificationSubscriber, token string, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		subscriber:     subscriber,
		token:          strings.TrimSpace(token),
		logger:         logger,
		allowedOrigins: allowedOrigins,
		pingInterval:   30 * time.Second,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin 允许无 Origin 的本地客户端与浏览器扩展（chrome-extension://、moz-extension://）。
func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "chrome-extension", "moz-extension":
		return len(h.allowedOrigins) == 0
	}
	return len(h.allowedOrigins) == 0 && strings.EqualFold(u.Host, r.Host)
}

// wsClientMessage 是客户端上行消息：auth 携带 token，subscribe 选择关心的事件。
type wsClientMessage struct {
	Type   string   `json:"type"`
	Token  string   `json:"token,omitempty"`
	Events []string `json:"events,omitempty"`
}

// eventFilter 记录连接订阅的事件；为空表示全部。
type eventFilter struct {
	mu     sync.RWMutex
	events map[string]struct{}
}

func (f *eventFilter) set(events []string) {
	next := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			next[e] = struct{}{}
		}
	}
	f.mu.Lock()
	f.events = next
	f.mu.Unlock()
}

func (f *eventFilter) allows(event string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.events) == 0 {
		return true
	}
	_, ok := f.events[event]
	return ok
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("correlation_id", middleware.GetCorrelationID(c)),
	)

	filter := &eventFilter{}
	authCh := make(chan struct{}, 1)
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, filter, authCh, errCh, cancel, log)

	if h.token != "" {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			log.Warn("websocket authentication failed", slog.Any("error", err))
			return
		case <-authCh:
		}
	}

	go h.forwardLoop(ctx, conn, filter, errCh, cancel, log)

	select {
	case <-ctx.Done():
		log.Info("websocket connection closed")
	case err := <-errCh:
		log.Info("websocket connection closed", slog.Any("error", err))
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	filter *eventFilter,
	authCh chan<- struct{},
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	authenticated := h.token == ""
	fail := func(code int, text string, err error) {
		writeClose(conn, code, text)
		errCh <- err
		cancel()
	}

	for ctx.Err() == nil {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			fail(websocket.CloseAbnormalClosure, "read error", fmt.Errorf("read message: %w", err))
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			fail(websocket.ClosePolicyViolation, "invalid payload", fmt.Errorf("decode client message: %w", err))
			return
		}

		if !authenticated {
			if msg.Type != "auth" || !middleware.ValidToken(h.token, strings.TrimSpace(msg.Token)) {
				fail(websocket.ClosePolicyViolation, "unauthorized", fmt.Errorf("invalid auth message"))
				return
			}
			authenticated = true
			authCh <- struct{}{}
			log.Info("websocket authenticated")
			continue
		}

		switch msg.Type {
		case "subscribe":
			filter.set(msg.Events)
			log.Debug("websocket subscription updated", slog.Any("events", msg.Events))
		case "auth":
		default:
			log.Debug("ignoring websocket message", slog.String("type", msg.Type))
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// notificationEvent 只解析路由所需的 event 字段，消息体原样转发。
func notificationEvent(payload string) string {
	var n struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return ""
	}
	return n.Event
}

func (h *WsHandler) forwardLoop(
	ctx context.Context,
	conn *websocket.Conn,
	filter *eventFilter,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	pubsub := h.subscriber.Subscribe(ctx, worker.NotifyChannel)
	defer pubsub.Close()

	log.Info("subscribed to notifications", slog.String("channel", worker.NotifyChannel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}
			event := notificationEvent(msg.Payload)
			if !filter.allows(event) {
				continue
			}
			log.Debug("forwarding notification", slog.String("event", event))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
