package gateway

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/httputil"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
)

// PublishRequest is the body of POST /v1/publish.
type PublishRequest struct {
	Channel string `json:"channel"`
	DataB64 string `json:"data_base64"`
}

// healthHandler reports the store and reader state. A degraded client is
// still 200; only a client that is not started is 503.
func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	h, err := g.backend.Health(r.Context())
	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]any{
		"status":      h.Status,
		"store":       h.Store,
		"reader":      h.Reader,
		"subscribers": h.Subscribers,
		"channels":    h.Channels,
		"patterns":    h.Patterns,
		"uptime":      time.Since(g.startedAt).Round(time.Second).String(),
	})
}

// publishHandler handles POST /v1/publish {channel, data_base64}
func (g *Gateway) publishHandler(w http.ResponseWriter, r *http.Request) {
	var body PublishRequest
	if err := httputil.DecodeJSONStrict(r, &body); err != nil || strings.TrimSpace(body.Channel) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "invalid body: expected {channel,data_base64}")
		return
	}
	data, err := httputil.DecodeBase64(body.DataB64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid base64 data")
		return
	}

	n, err := g.backend.Publish(r.Context(), body.Channel, data)
	if err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "publish failed",
			zap.String("channel", body.Channel),
			zap.String("code", errors.GetErrorCode(err)),
			zap.NamedError("cause", errors.Cause(err)),
			zap.Error(err))
		var traced interface{ StackTrace() string }
		if errors.As(err, &traced) {
			g.logger.ComponentDebug(logging.ComponentGateway, "publish failure origin",
				zap.String("stack", traced.StackTrace()))
		}
		httputil.WriteErr(w, err)
		return
	}

	g.logger.ComponentDebug(logging.ComponentGateway, "published",
		zap.String("channel", body.Channel),
		zap.Int("data_len", len(data)),
		zap.Int64("receivers", n))
	httputil.WriteSuccess(w, map[string]any{"receivers": n})
}

// channelsHandler lists the keys held on the shared connection.
func (g *Gateway) channelsHandler(w http.ResponseWriter, r *http.Request) {
	mux := g.backend.Multiplexer()
	if mux == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "client not started")
		return
	}

	channels := []string{}
	patterns := []string{}
	for _, k := range mux.Keys() {
		if k.Pattern {
			patterns = append(patterns, k.Name)
		} else {
			channels = append(channels, k.Name)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"channels":    channels,
		"patterns":    patterns,
		"subscribers": mux.Subscribers(),
	})
}
