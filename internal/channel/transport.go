package channel

import (
	"context"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WebsocketTransport — продакшен-транспорт поверх nhooyr.io/websocket.
type WebsocketTransport struct{}

// Dial открывает websocket-соединение с endpoint (токен — в query-строке).
func (WebsocketTransport) Dial(ctx context.Context, endpoint string) (Conn, error) {
	const op = "channel.transport.Dial"

	ws, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadJSON(ctx context.Context, v any) error {
	return wsjson.Read(ctx, c.ws, v)
}

func (c *wsConn) WriteJSON(ctx context.Context, v any) error {
	// Таймаут на запись: зависшая запись не должна блокировать отправителя.
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return wsjson.Write(writeCtx, c.ws, v)
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}
