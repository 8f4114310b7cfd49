package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	Before    int64     // sequence < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
	SessionID string    // exact match when set
	Purpose   string    // LLM events only
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	SessionID    string
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request with its identity and time.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// UsageStat aggregates LLM calls by purpose.
type UsageStat struct {
	Purpose      string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM tokens by model for cost estimates.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// Gate event kinds.
const (
	KindResponse    = "response"
	KindInactivity  = "inactivity"
	KindTaskTimeout = "task_timeout"
	KindChoice      = "choice"
)

// GateEventData is one result the gate delivered to the game layer.
// Correct is nil when the event carried no answer to judge.
type GateEventData struct {
	SessionID     string
	Kind          string
	Level         string
	Signals       []string
	Interventions []string
	Correct       *bool
	ChildSaid     string
	CoachLine     string
	UsedFallback  bool
}

// GateEventRecord is a stored gate event.
type GateEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	GateEventData
}

// EventRepo provides append and query access to the audit trail.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns one event, or nil if id is unknown.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	LLMUsageByPurpose(ctx context.Context) ([]UsageStat, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)

	// AppendGateEvent records a delivered pipeline result.
	AppendGateEvent(ctx context.Context, data GateEventData) error

	// QueryGateEvents returns gate events oldest first, so a session reads
	// back in the order the child experienced it.
	QueryGateEvents(ctx context.Context, opts QueryOpts) ([]GateEventRecord, error)
}
