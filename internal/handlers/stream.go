package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const pingInterval = 30 * time.Second

// Progress streams a session's stage events and monitor samples as JSON
// text frames until the client goes away.
func (a *API) Progress() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		defer c.Close()

		id := c.Params("id")
		if _, err := a.orch.Store().Get(id); err != nil {
			msg, _ := json.Marshal(fiber.Map{"error": err.Error(), "code": "ERR_SESSION_NOT_FOUND"})
			c.WriteMessage(websocket.TextMessage, msg)
			return
		}

		subID, events := a.orch.Hub().Subscribe(id, 0)
		defer a.orch.Hub().Unsubscribe(subID)

		log := a.logger.With(zap.String("session", id))
		log.Debug("progress stream opened")

		// The reader only exists to notice the client closing.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				log.Debug("progress stream closed")
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				msg, err := json.Marshal(e)
				if err != nil {
					continue
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Debug("progress write failed", zap.Error(err))
					return
				}
			case <-ping.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}
