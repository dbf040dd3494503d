package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 20 * time.Second
	readTimeout  = time.Minute
	pingInterval = 30 * time.Second
)

// wsConn wraps a gorilla connection with the read deadline refreshed on pong.
// Writes are serialized by the owning write pump.
type wsConn struct {
	socket *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		// WriteControl is safe to call from the read goroutine.
		return conn.WriteControl(websocket.PongMessage, []byte(appData),
			time.Now().Add(writeTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	return &wsConn{socket: conn}
}

func (wc *wsConn) Write(data []byte) error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *wsConn) Ping() error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *wsConn) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *wsConn) Close(reason string) {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = wc.socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	_ = wc.socket.Close()
}
