package models

// ConcernVerdict is the verifier's output for a flagged message. It is
// ephemeral: the orchestrator folds it into a Flag and/or an advice message
// but never persists it directly.
type ConcernVerdict struct {
	IsRealConcern bool
	ConcernLevel  int // always within [0,5]
	Explanation   string
	StudentAdvice string // empty when no advice is warranted
}
