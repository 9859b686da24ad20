package domain

import "time"

// Document is a unit of ingestion. ID is the only key used to address its index collection.
type Document struct {
	ID   string
	Text string
}

// Chunk is a contiguous window of a document's text. Offsets are rune offsets into Document.Text.
type Chunk struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Start  int    `json:"start_offset"`
	End    int    `json:"end_offset"`
	Length int    `json:"length"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a single chat call. Zero values leave the backend default in place.
type ChatOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// StreamState is the lifecycle of one streaming chat call.
type StreamState string

const (
	StateConnecting      StreamState = "connecting"
	StateStreaming       StreamState = "streaming"
	StateDone            StreamState = "done"
	StateTimedOutPartial StreamState = "timed_out_partial"
	StateFailed          StreamState = "failed"
)

// Completion is the accumulated output of a chat call.
type Completion struct {
	Text      string
	State     StreamState
	Fragments int
	Skipped   int
}

// Partial reports whether the text was salvaged from a stream that timed out.
func (c Completion) Partial() bool {
	return c.State == StateTimedOutPartial
}

type RetrievalResult struct {
	ChunkID  int               `json:"chunk_id"`
	Text     string            `json:"text"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type Answer struct {
	Answer     string     `json:"answer"`
	Sources    []string   `json:"sources"`
	Confidence Confidence `json:"confidence"`
	NumSources int        `json:"num_sources"`
	Partial    bool       `json:"partial,omitempty"`
}

// CollectionInfo describes a stored document collection.
type CollectionInfo struct {
	Name      string    `json:"name"`
	DocID     string    `json:"doc_id"`
	Dimension int       `json:"dimension"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}
