// internal/core/syncer/phase.go
package syncer

// Phase is the state of a collection within one transaction.
type Phase string

// Transaction phases. A transaction starts and ends in PhaseIdle; the
// terminal phase of the last attempt is kept as the collection's last outcome.
const (
	PhaseIdle       Phase = "idle"
	PhaseMutated    Phase = "mutated"
	PhaseCommitting Phase = "committing"
	PhaseCommitted  Phase = "committed"
	PhaseConflicted Phase = "conflicted"
	PhaseFailed     Phase = "failed"
)

// Source tells where a load found its data.
type Source string

// Load sources
const (
	SourceRemote Source = "remote"
	SourceEmpty  Source = "empty"
	SourceMirror Source = "mirror"
)
