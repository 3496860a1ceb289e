package database

import "time"

// MaxLabelLength bounds an asset's display label.
const MaxLabelLength = 100

// State is an asset's lifecycle state.
type State string

const (
	StateCreated     State = "created"
	StateValidating  State = "validating"
	StateTranscoding State = "transcoding"
	StatePublished   State = "published"
	StateRejected    State = "rejected"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{StateCreated, StateValidating, StateTranscoding, StatePublished, StateRejected}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, st := range AllStates {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StatePublished || s == StateRejected
}

// Asset is one ingested video and its processing outcome.
// ProcessedRef is set only when State is published.
type Asset struct {
	ID           int64      `json:"id"`
	Label        string     `json:"label"`
	SourcePath   string     `json:"-"`
	SourceName   string     `json:"sourceName"`
	SourceSize   int64      `json:"sourceSize"`
	SourceHash   string     `json:"sourceHash,omitempty"`
	ProcessedRef string     `json:"processedRef,omitempty"`
	OutputDir    string     `json:"-"`
	State        State      `json:"state"`
	Reason       string     `json:"reason,omitempty"`
	Duration     float64    `json:"duration,omitempty"`
	PosterRef    string     `json:"posterRef,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
}

// Published reports whether the asset has a playable reference.
func (a *Asset) Published() bool {
	return a.State == StatePublished && a.ProcessedRef != ""
}

// ListOptions filters and pages ListAssets.
type ListOptions struct {
	State  State
	Limit  int
	Offset int
}
