package relay

import (
	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"coartistry-backend/internal/auth"
	"coartistry-backend/internal/session"
)

// HandleWebSocket runs the read loop of one upgraded connection. The Session
// Gate must have stored the caller's identity in Locals before the upgrade.
func (e *Engine) HandleWebSocket(c *websocket.Conn) {
	id, ok := c.Locals(auth.LocalsIdentity).(*auth.Identity)
	if !ok || id == nil {
		e.logger.Warn("websocket without identity, closing")
		_ = c.Close()
		return
	}
	if e.opts.MaxMessageSize > 0 {
		c.SetReadLimit(e.opts.MaxMessageSize)
	}

	s := session.New(c, *id, e.opts.Session)
	e.Connect(s)
	defer e.Disconnect(s)

	// 메시지 수신 루프
	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Debug("read error", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			_ = e.drop(s, "", reasonBinaryFrame)
			continue
		}
		_ = e.Handle(s.Context(), s, msg)
	}
}
