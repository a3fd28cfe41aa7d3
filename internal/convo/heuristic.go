package convo

import "strings"

// Signal tags attached to a ProblemBrief by the heuristic gate.
const (
	SignalFailing    = "failing"
	SignalBlocked    = "blocked"
	SignalSlow       = "slow"
	SignalMonitoring = "monitoring"
	SignalAutomation = "automation"
	SignalNotify     = "notify"
	SignalRepetitive = "repetitive"
	SignalManual     = "manual"
)

// problemPhrases maps lowercase substrings of the user's original text to
// signal tags. Completion output alone is an unreliable gate for the
// journal-vs-problem decision, so a ProblemBrief from the model is only
// trusted when at least one of these fires independently.
var problemPhrases = []struct {
	phrase string
	signal string
}{
	{"fail", SignalFailing},
	{"error", SignalFailing},
	{"crash", SignalFailing},
	{"broken", SignalFailing},
	{"flaky", SignalFailing},
	{"randomly fails", SignalFailing},
	{"stuck", SignalBlocked},
	{"blocked", SignalBlocked},
	{"too slow", SignalSlow},
	{"slow", SignalSlow},
	{"alert", SignalNotify},
	{"notify", SignalNotify},
	{"monitor", SignalMonitoring},
	{"automate", SignalAutomation},
	{"repetitive", SignalRepetitive},
	{"manual", SignalManual},
	{"every time", SignalRepetitive},
	{"keep having to", SignalRepetitive},
}

// ProblemSignals returns the deduplicated signal tags present in text, in
// first-match order. Empty means no automation intent was detected.
func ProblemSignals(text string) []string {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return nil
	}
	seen := make(map[string]struct{}, 4)
	var out []string
	for _, p := range problemPhrases {
		if !strings.Contains(t, p.phrase) {
			continue
		}
		if _, ok := seen[p.signal]; ok {
			continue
		}
		seen[p.signal] = struct{}{}
		out = append(out, p.signal)
	}
	return out
}

// IsProblem reports whether text carries any heuristic problem signal.
// The heuristic is authoritative for the phase-changing decision: without
// it a model-proposed ProblemBrief is downgraded to a journal entry.
func IsProblem(text string) bool {
	return len(ProblemSignals(text)) > 0
}
