package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// MessagePublisher NATS 發布端（*nats.Conn 即符合）
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher 把房間廣播轉發到 NATS，供排行、角色等下游服務訂閱
//
// Subject 格式：{prefix}.{roomID}.{event}，例如 raid.rooms.<id>.gameResult
//
// 使用 Core NATS（fire-and-forget）：Publish 只寫入客戶端緩衝，
// 不會在房間鎖內等待網路。單播事件只屬於單一連線，不轉發。
type NATSPublisher struct {
	pub    MessagePublisher
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher 創建 NATS 轉發閘道
func NewNATSPublisher(pub MessagePublisher, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{pub: pub, prefix: prefix, logger: logger}
}

// ConnectNATS 連線到 NATS，斷線時無限重連
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("raid-room"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連線中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重新連線", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// Subject 房間事件的 subject
func (p *NATSPublisher) Subject(roomID, event string) string {
	return p.prefix + "." + roomID + "." + event
}

// BroadcastToRoom 發布房間事件
func (p *NATSPublisher) BroadcastToRoom(roomID, event string, payload any) {
	data, err := json.Marshal(Envelope{
		Event:     event,
		RoomID:    roomID,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		p.logger.Error("序列化事件失敗", "room_id", roomID, "event", event, "error", err)
		return
	}

	if err := p.pub.Publish(p.Subject(roomID, event), data); err != nil {
		p.logger.Warn("NATS 發布失敗", "room_id", roomID, "event", event, "error", err)
	}
}

// SendToConnection 單播不轉發
func (p *NATSPublisher) SendToConnection(string, string, any) {}
