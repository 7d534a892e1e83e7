package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWorkOrderWS implements `GET /work-orders/:id/ws` (spec §4.9): it
// upgrades the connection and streams the work order's EventBus events for
// the life of the socket, unsubscribing on close.
func (s *Server) handleWorkOrderWS(c *gin.Context) {
	workOrderId := c.Param("id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if s.log != nil {
			s.log.Warn("api: websocket upgrade failed", zap.Error(err))
		}
		return
	}
	defer conn.Close()

	events := make(chan domain.Event, 16)
	cancel := s.bus.Subscribe(workOrderId, func(evt domain.Event) {
		select {
		case events <- evt:
		default:
		}
	})
	defer cancel()

	closed := make(chan struct{})
	go discardInbound(conn, closed)

	for {
		select {
		case evt := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// discardInbound keeps the read side serviced so the connection's control
// frames (ping/close) are processed; the client never sends payloads here.
// closed is signaled once the read loop ends, unblocking the write loop.
func discardInbound(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
