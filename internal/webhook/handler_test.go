package webhook

import (
	"testing"

	"vocero/internal/conversation"
)

func TestCarrierOutcome(t *testing.T) {
	cases := []struct {
		status   string
		outcome  conversation.Outcome
		terminal bool
	}{
		{"completed", conversation.OutcomeCompleted, true},
		{"busy", conversation.OutcomeBusy, true},
		{"no-answer", conversation.OutcomeNoAnswer, true},
		{"failed", conversation.OutcomeFailed, true},
		{"canceled", conversation.OutcomeFailed, true},
		{"ringing", "", false},
		{"in-progress", "", false},
		{"initiated", "", false},
		{"queued", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		outcome, terminal := carrierOutcome(tc.status)
		if outcome != tc.outcome || terminal != tc.terminal {
			t.Errorf("carrierOutcome(%q) = (%q, %v), want (%q, %v)",
				tc.status, outcome, terminal, tc.outcome, tc.terminal)
		}
	}
}
