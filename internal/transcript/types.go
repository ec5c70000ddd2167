package transcript

import "time"

// RawEntry represents a single line in a host transcript JSONL file.
type RawEntry struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Message   *RawMessage `json:"message,omitempty"`
}

// RawMessage represents the assistant's message envelope.
type RawMessage struct {
	ID    string    `json:"id"`
	Role  string    `json:"role"`
	Model string    `json:"model"`
	Usage *RawUsage `json:"usage,omitempty"`
}

// RawUsage holds token counts from the API response.
type RawUsage struct {
	InputTokens              int64          `json:"input_tokens"`
	OutputTokens             int64          `json:"output_tokens"`
	CacheCreationInputTokens int64          `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64          `json:"cache_read_input_tokens"`
	CacheCreation            *CacheCreation `json:"cache_creation,omitempty"`
}

// CacheCreation holds the breakdown of cache write tokens by TTL bucket.
// Both buckets price as cache writes, so they are summed on extraction.
type CacheCreation struct {
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
}

// Turn is one authoritative token-usage record extracted from a transcript.
type Turn struct {
	Ordinal    int
	ID         string // request ID, falling back to message ID
	Model      string
	Timestamp  time.Time
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// ContextTokens is the total context observed in this turn.
func (t Turn) ContextTokens() int64 {
	return t.Input + t.CacheWrite + t.CacheRead
}
