package session

import "sort"

// Snapshot values arrive as generic document trees; numbers may be ints from
// the in-memory store or float64 from the JSON wire. These helpers normalize.

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parsePlayer(m map[string]any) PlayerSnapshot {
	return PlayerSnapshot{
		Y:           asFloat(m["y"]),
		State:       asString(m["state"]),
		Score:       asFloat(m["score"]),
		Alive:       asBool(m["alive"]),
		HeartbeatMs: asInt64(m["heartbeat"]),
	}
}

func parseChatMessage(m map[string]any) ChatMessage {
	return ChatMessage{
		Sender: asString(m["sender"]),
		Text:   asString(m["text"]),
		TimeMs: asInt64(m["time"]),
	}
}
