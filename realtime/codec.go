// Package realtime exposes a store.Memory over websocket and provides the
// matching client, so the session core runs identically against the local
// tree or a remote server.
package realtime

import "encoding/json"

// Client-to-server operation names.
const (
	OpWrite       = "write"
	OpMerge       = "merge"
	OpAppend      = "append"
	OpRemove      = "remove"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpCleanup     = "cleanup"
)

// Server-to-client frame types.
const (
	FrameAck      = "ack"
	FrameSnapshot = "snapshot"
)

// Op is one client request. ID correlates the ack; Sub is the client-chosen
// subscription id for subscribe/unsubscribe and on snapshot frames.
type Op struct {
	ID     int64          `json:"id"`
	Op     string         `json:"op"`
	Path   string         `json:"path,omitempty"`
	Value  any            `json:"value,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Sub    int64          `json:"sub,omitempty"`
}

type Frame struct {
	Type  string `json:"type"`
	ID    int64  `json:"id,omitempty"`
	Sub   int64  `json:"sub,omitempty"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func encodeFrame(f Frame) ([]byte, error) { return json.Marshal(f) }

func encodeOp(op Op) ([]byte, error) { return json.Marshal(op) }

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

func decodeOp(data []byte) (Op, error) {
	var op Op
	err := json.Unmarshal(data, &op)
	return op, err
}
