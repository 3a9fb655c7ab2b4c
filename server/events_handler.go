package server

import (
	"encoding/json"
	"net/http"
	"time"

	"TuneBay/core/events"
	"TuneBay/db"
	"TuneBay/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait = 10 * time.Second
	// 超过 wsPongWait 未收到 pong 应答即视为半死连接，读泵随之退出
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// EventsHandler 通过 WebSocket 推送任务状态变更事件。
// 事件流来自 Redis 发布/订阅，跨进程的 worker 也能到达这里的订阅者。
// 客户端断开时订阅与心跳随连接一并拆除。
func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	eventCh, cancel := events.Subscribe(ctx, db.RedisClient)
	defer cancel()

	// 读泵探测客户端断开：pong 应答刷新读超时，
	// 半死连接在 wsPongWait 内没有应答时由读超时拆除
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 连接确认
	if err := conn.WriteJSON(map[string]string{"type": "connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Warn("事件序列化失败", logger.ErrorField(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("websocket write failed", logger.ErrorField(err))
				return
			}

		case <-ticker.C:
			// 心跳保活，写失败即视为断开
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
