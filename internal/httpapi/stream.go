package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voxelnav/internal/network"
)

// StatusFrame is one push on the status stream.
type StatusFrame struct {
	Time   time.Time             `json:"time"`
	Actors []network.ActorStatus `json:"actors"`
	Error  string                `json:"error,omitempty"`
}

const writeWait = 5 * time.Second

// stream pushes actor status frames until the client disconnects. The
// optional actor query parameter narrows the frames to one actor.
func (a *API) stream(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Printf("status stream upgrade: %v", err)
		return
	}
	defer conn.Close()

	actorID := c.Query("actor")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The reader only notices the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(a.rate)
	defer ticker.Stop()

	for {
		frame := a.frame(actorID)
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		if frame.Error != "" {
			closeStream(conn, websocket.ClosePolicyViolation, frame.Error)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			closeStream(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (a *API) frame(actorID string) StatusFrame {
	frame := StatusFrame{Time: time.Now().UTC()}
	if actorID == "" {
		frame.Actors = a.svc.Statuses()
		return frame
	}
	status, err := a.svc.Status(actorID)
	if err != nil {
		frame.Error = err.Error()
		return frame
	}
	frame.Actors = []network.ActorStatus{status}
	return frame
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
