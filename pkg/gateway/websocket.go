package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/httputil"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope is the JSON frame sent for every delivered message.
type Envelope struct {
	Channel   string `json:"channel"`
	Pattern   string `json:"pattern,omitempty"`
	Data      string `json:"data"` // base64
	Timestamp int64  `json:"timestamp"`
}

// wsClient serializes writes to one socket. gorilla allows a single
// concurrent writer.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	logger *logging.ColoredLogger
	mu     sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) writeControl(messageType int, data []byte) error {
	return c.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

func (c *wsClient) send(msg *pubsub.Message) error {
	err := c.writeJSON(Envelope{
		Channel:   msg.Channel(),
		Pattern:   msg.Pattern(),
		Data:      httputil.EncodeBase64(msg.Payload()),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		c.logger.ComponentWarn(logging.ComponentGateway, "ws: failed to write to websocket",
			zap.String("conn_id", c.id),
			zap.String("channel", msg.Channel()),
			zap.Error(err))
	}
	return err
}

// subscribeHandler serves GET /v1/subscribe?channel=a&pattern=p*.
// Each socket owns one Subscriber on the shared connection. Subscriptions
// are made before the upgrade so failures are plain HTTP errors. Text or
// binary frames from the client are published to the first channel, except
// {"type":"ping"} heartbeats.
func (g *Gateway) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	channels := httputil.QueryValues(r, "channel")
	patterns := httputil.QueryValues(r, "pattern")
	if len(channels) == 0 && len(patterns) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "expected at least one 'channel' or 'pattern'")
		return
	}

	sub, err := g.backend.NewSubscriber()
	if err != nil {
		httputil.WriteErr(w, err)
		return
	}
	// The request context ends with the handler, so release on a detached one.
	release := context.WithoutCancel(r.Context())
	defer func() {
		if err := sub.Close(release); err != nil {
			g.logger.ComponentWarn(logging.ComponentGateway, "ws: subscriber close failed",
				zap.String("subscriber", sub.ID()),
				zap.Error(err))
		}
	}()

	if len(channels) > 0 {
		if err := sub.Subscribe(r.Context(), channels...); err != nil {
			httputil.WriteErr(w, err)
			return
		}
	}
	if len(patterns) > 0 {
		if err := sub.PSubscribe(r.Context(), patterns...); err != nil {
			httputil.WriteErr(w, err)
			return
		}
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "ws: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsClient{id: uuid.NewString(), conn: conn, logger: g.logger}
	g.logger.ComponentInfo(logging.ComponentGateway, "ws: stream opened",
		zap.String("conn_id", c.id),
		zap.String("subscriber", sub.ID()),
		zap.Strings("channels", channels),
		zap.Strings("patterns", patterns))

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.writerLoop(ctx, c, sub)
		// unblocks readerLoop
		_ = conn.Close()
	}()

	publishTo := ""
	if len(channels) > 0 {
		publishTo = channels[0]
	}
	g.readerLoop(ctx, c, publishTo)

	cancel()
	<-done
	g.logger.ComponentInfo(logging.ComponentGateway, "ws: stream closed",
		zap.String("conn_id", c.id))
}

// writerLoop forwards delivered messages until ctx is done, the subscriber
// is closed or a write fails.
func (g *Gateway) writerLoop(ctx context.Context, c *wsClient, sub *pubsub.Subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	msgs := sub.Messages(ctx)
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				_ = c.writeControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := c.send(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.writeControl(websocket.PingMessage, []byte("ping"))
		case <-ctx.Done():
			return
		}
	}
}

// readerLoop reads client frames until the socket fails or closes.
func (g *Gateway) readerLoop(ctx context.Context, c *wsClient, publishTo string) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var frame struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &frame) == nil && frame.Type == "ping" {
			continue
		}
		if publishTo == "" {
			_ = c.writeJSON(map[string]string{"error": "no channel to publish to"})
			continue
		}

		if _, err := g.backend.Publish(ctx, publishTo, data); err != nil {
			g.logger.ComponentWarn(logging.ComponentGateway, "ws: publish failed",
				zap.String("conn_id", c.id),
				zap.String("channel", publishTo),
				zap.Error(err))
			_ = c.writeJSON(map[string]string{"error": "publish failed"})
		}
	}
}
