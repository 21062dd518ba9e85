// ABOUTME: Per-mutation finite state machine states and transition logging
// ABOUTME: Idle -> Applying -> Submitted -> Committed or RolledBack

package mutate

import "log/slog"

// state is the phase of one in-flight mutation.
type state int

const (
	stateIdle state = iota
	stateApplying
	stateSubmitted
	stateCommitted
	stateRolledBack
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateApplying:
		return "applying"
	case stateSubmitted:
		return "submitted"
	case stateCommitted:
		return "committed"
	case stateRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// mutation tracks one logical write from intent to settlement.
type mutation struct {
	id    string
	op    string
	state state
}

func (m *mutation) to(next state, logger *slog.Logger) {
	logger.Debug("mutation state",
		"mutation_id", m.id,
		"op", m.op,
		"from", m.state.String(),
		"to", next.String())
	m.state = next
}
