package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lunia-systems/lunia-console/internal/pkg/logger"
	"github.com/lunia-systems/lunia-console/internal/poller"
	"github.com/lunia-systems/lunia-console/internal/service"
)

const pingPeriod = 15 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local surface only; the console binds to an operator host.
		return true
	},
}

// StreamHandler pushes poller state changes to dashboard clients over a
// websocket so widgets update without re-requesting surfaces.
type StreamHandler struct {
	console *service.Console
}

func NewStreamHandler(console *service.Console) *StreamHandler {
	return &StreamHandler{console: console}
}

type streamEvent struct {
	Resource string       `json:"resource"`
	State    resourceView `json:"state"`
}

func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	events := make(chan streamEvent, 32)

	forward(done, events, "status", h.console.Status)
	forward(done, events, "activity", h.console.Activity)
	forward(done, events, "portfolio", h.console.Portfolio)
	forward(done, events, "balances", h.console.Balances)
	forward(done, events, "signals", h.console.Signals)
	forward(done, events, "arb_opps", h.console.Opps)
	forward(done, events, "capital", h.console.Capital)
	forward(done, events, "logs", h.console.Logs)

	// Reader exists only to observe the peer closing.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// forward relays one poller's updates into the shared event channel,
// dropping rather than blocking when the writer is behind.
func forward[T any](done <-chan struct{}, out chan<- streamEvent, name string, p *poller.Poller[T]) {
	ch, cancel := p.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-done:
				return
			case state, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- streamEvent{Resource: name, State: view(state)}:
				default:
				}
			}
		}
	}()
}
