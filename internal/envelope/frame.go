package envelope

import (
	"fmt"
	"strings"
	"time"
)

// Injection returns the text typed into the recipient's window during
// direct actuation: the frame's address line followed by the body.
func Injection(env *Envelope, recipient string) string {
	line := addressLine(env, recipient)
	if env.Priority != PriorityNormal {
		line = "[" + env.Priority.String() + "] " + line
	}
	return line + "\n" + env.Body
}

// Artifact renders the framed inbox file for one recipient: a header
// block, the normalized body, and the frame's footer.
func Artifact(env *Envelope, recipient string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", env.Frame)
	fmt.Fprintf(&b, "id: %s\n", env.ID)
	fmt.Fprintf(&b, "from: %s\n", env.Sender)
	fmt.Fprintf(&b, "to: %s\n", recipient)
	if env.InReplyTo != "" {
		fmt.Fprintf(&b, "in-reply-to: %s\n", env.InReplyTo)
	}
	fmt.Fprintf(&b, "priority: %s\n", env.Priority)
	if len(env.Tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(env.Tags, ", "))
	}
	fmt.Fprintf(&b, "sent: %s\n", env.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n")
	b.WriteString(env.Body)
	b.WriteString("\n\n")
	b.WriteString(footer(env.Frame))
	b.WriteString("\n")
	return b.String()
}

func addressLine(env *Envelope, recipient string) string {
	switch env.Frame {
	case FrameAgent:
		return fmt.Sprintf("[%s -> %s]", env.Sender, recipient)
	case FrameSystem:
		return fmt.Sprintf("[SYSTEM NOTICE for %s]", recipient)
	case FrameHuman:
		return fmt.Sprintf("[%s (human) -> %s]", env.Sender, recipient)
	case FrameCoordinator:
		return fmt.Sprintf("[COORDINATOR %s -> %s]", env.Sender, recipient)
	default:
		return fmt.Sprintf("[message for %s]", recipient)
	}
}

func footer(frame FrameKind) string {
	switch frame {
	case FrameAgent:
		return "-- end agent message --"
	case FrameSystem:
		return "-- end system notice --"
	case FrameHuman:
		return "-- end human message --"
	case FrameCoordinator:
		return "-- end coordinator directive --"
	default:
		return "-- end message --"
	}
}

// ArtifactInfo is the parsed form of an inbox artifact. Reply artifacts
// written by agents set InReplyTo to the id of the message they answer.
type ArtifactInfo struct {
	ID        string
	From      string
	To        string
	Priority  Priority
	Tags      []string
	Frame     FrameKind
	Sent      time.Time
	InReplyTo string
	Body      string
}

// ParseArtifact reads an artifact back into its header fields and body.
// The parser is tolerant of artifacts written by agents: the banner line
// is optional, unknown header keys are ignored, and the footer may be
// absent. It fails only when no header block is present at all.
func ParseArtifact(data []byte) (*ArtifactInfo, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	info := &ArtifactInfo{Frame: FrameGeneric}
	i := 0
	if i < len(lines) && strings.HasPrefix(lines[i], "=== ") {
		name := strings.TrimSuffix(strings.TrimPrefix(lines[i], "=== "), " ===")
		if fk, err := ParseFrameKind(name); err == nil {
			info.Frame = fk
		}
		i++
	}

	keys := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			break
		}
		v = strings.TrimSpace(v)
		keys++
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "id":
			info.ID = v
		case "from":
			info.From = v
		case "to":
			info.To = v
		case "priority":
			if p, err := ParsePriority(v); err == nil {
				info.Priority = p
			}
		case "tags":
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					info.Tags = append(info.Tags, t)
				}
			}
		case "sent":
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				info.Sent = ts
			}
		case "in-reply-to":
			info.InReplyTo = v
		default:
			keys-- // unknown key, not part of the contract
		}
	}
	if keys == 0 {
		return nil, fmt.Errorf("envelope: artifact has no header block")
	}

	var body []string
	for ; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "-- end ") {
			break
		}
		body = append(body, lines[i])
	}
	info.Body = strings.Trim(strings.Join(body, "\n"), "\n")
	return info, nil
}
