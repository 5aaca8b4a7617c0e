package http

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/fieldmap/internal/adapters/nats"
	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

// wsMessage is a gesture sent by a browser renderer.
type wsMessage struct {
	Action string   `json:"action"` // "click" | "long_press"
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
}

// WebSocketHandler returns a handler that turns a browser into a remote
// renderer. Every render command under prefix is relayed to the client, and
// the client reports gestures as
// {"action":"click","lat":43.26,"lon":-2.93}.
func WebSocketHandler(nc *nats.Conn, prefix string) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("component", "ws", "remote", remoteAddr)
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		inputPrefix := prefix + ".input."
		sub, err := nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
			if strings.HasPrefix(msg.Subject, inputPrefix) {
				return
			}
			_ = writeJSON(relayEnvelope{Subject: msg.Subject, Data: json.RawMessage(msg.Data)})
		})
		if err != nil {
			log.Error("ws subscribe failed", "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Lat == nil || m.Lon == nil {
				_ = writeJSON(map[string]string{"error": "lat and lon are required"})
				continue
			}
			if err := domain.NewGeoPoint(*m.Lat, *m.Lon).Validate(); err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				continue
			}

			var subject string
			switch m.Action {
			case "click":
				subject = inputPrefix + "click"
			case "long_press":
				subject = inputPrefix + "longpress"
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
				continue
			}

			data, _ := json.Marshal(natsadapter.GestureMessage{Lat: *m.Lat, Lon: *m.Lon})
			if err := nc.Publish(subject, data); err != nil {
				_ = writeJSON(map[string]string{"error": "publish failed: " + err.Error()})
			}
		}

		log.Info("ws client disconnected")
	}
}

// relayEnvelope wraps a relayed render command with its subject.
type relayEnvelope struct {
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}
