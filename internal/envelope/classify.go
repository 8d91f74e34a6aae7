package envelope

import "strings"

// Classifier resolves the frame kind for a sender identity when an
// envelope is built with FrameAuto. The zero value behaves like
// DefaultClassifier.
type Classifier struct {
	Coordinator string   // coordinator identity, e.g. "captain"
	System      []string // known automation identities
	Humans      []string // known human identities
	AgentPrefix string   // senders carrying this prefix are agents
	Agents      []string // additional known agent ids (registry ids)
}

// DefaultClassifier matches the conventional fleet identities.
var DefaultClassifier = Classifier{
	Coordinator: "captain",
	System:      []string{"system", "watchdog", "scheduler"},
	Humans:      []string{"operator"},
	AgentPrefix: "agent-",
}

// Classify maps a sender identity to a frame kind. Order: agent identity,
// then system, then human, then coordinator, then generic.
func (c Classifier) Classify(sender string) FrameKind {
	if c.Coordinator == "" && c.AgentPrefix == "" && len(c.System) == 0 && len(c.Humans) == 0 && len(c.Agents) == 0 {
		c = DefaultClassifier
	}
	sender = strings.TrimSpace(sender)

	if c.AgentPrefix != "" && strings.HasPrefix(sender, c.AgentPrefix) {
		return FrameAgent
	}
	if contains(c.Agents, sender) {
		return FrameAgent
	}
	if contains(c.System, sender) {
		return FrameSystem
	}
	if contains(c.Humans, sender) || strings.HasPrefix(sender, "human:") {
		return FrameHuman
	}
	if sender != "" && sender == c.Coordinator {
		return FrameCoordinator
	}
	return FrameGeneric
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
