package core

import "time"

type ActivityKind string

const (
	ActivityConnect    ActivityKind = "connect"
	ActivityLoad       ActivityKind = "load"
	ActivityDisconnect ActivityKind = "disconnect"
)

type ActivityOutcome string

const (
	OutcomeOK     ActivityOutcome = "ok"
	OutcomeFailed ActivityOutcome = "failed"
)

// Activity is one user-visible action and how it ended. Credentials is only
// carried so recorders can fingerprint it; it must never be persisted.
type Activity struct {
	Kind        ActivityKind
	Provider    string
	Identity    Identity
	Outcome     ActivityOutcome
	Message     string
	RecordCount int
	Credentials *CredentialBundle
	OccurredAt  time.Time
}
