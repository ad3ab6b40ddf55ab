package ws

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"curation-grid/internal/grid"
)

type Handler struct {
	hub    *Hub
	bridge *Bridge
	logger *zap.Logger
}

func NewHandler(hub *Hub, bridge *Bridge, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, bridge: bridge, logger: logger.Named("ws")}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream forwards ctl's events to the curator's topic and upgrades the
// request into a subscriber of it.
func (h *Handler) Stream(c fiber.Ctx, curator string, ctl *grid.Controller) error {
	if h == nil || h.bridge == nil {
		return fiber.ErrServiceUnavailable
	}
	h.bridge.Attach(curator, ctl)
	return h.Serve(c, curator)
}

// Serve upgrades the request and subscribes the socket to topic.
func (h *Handler) Serve(c fiber.Ctx, topic string) error {
	if h == nil || h.hub == nil {
		return fiber.ErrServiceUnavailable
	}

	fiberHandler := adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(h.hub, conn, topic)
		h.hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})

	return fiberHandler(c)
}
