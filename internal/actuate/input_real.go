//go:build !unittest

package actuate

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultAttemptTimeout bounds each xdotool invocation. Actuation attempts
// are short; anything slower than this is treated as a failed attempt.
const DefaultAttemptTimeout = 2 * time.Second

// RealInput is the production effector that calls the real xdotool binary.
type RealInput struct {
	Timeout time.Duration // per-invocation bound; DefaultAttemptTimeout if zero
}

func (r RealInput) run(args ...string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "xdotool", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("xdotool %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r RealInput) DisplayGeometry() (int, int, error) {
	out, err := r.run("getdisplaygeometry")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("xdotool getdisplaygeometry: unexpected output %q", out)
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("xdotool getdisplaygeometry: parse width %q: %w", fields[0], err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("xdotool getdisplaygeometry: parse height %q: %w", fields[1], err)
	}
	return w, h, nil
}

func (r RealInput) MoveClick(x, y int) error {
	// --sync waits for the pointer to actually arrive before the click fires.
	_, err := r.run("mousemove", "--sync", strconv.Itoa(x), strconv.Itoa(y), "click", "1")
	return err
}

func (r RealInput) ActiveWindow() (Window, error) {
	out, err := r.run("getactivewindow", "getwindowgeometry", "--shell")
	if err != nil {
		return Window{}, err
	}
	win := Window{}
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch k {
		case "WINDOW":
			win.ID = v
		case "X":
			win.X, _ = strconv.Atoi(v)
		case "Y":
			win.Y, _ = strconv.Atoi(v)
		case "WIDTH":
			win.Width, _ = strconv.Atoi(v)
		case "HEIGHT":
			win.Height, _ = strconv.Atoi(v)
		}
	}
	if win.ID == "" {
		return Window{}, fmt.Errorf("xdotool getwindowgeometry: unexpected output %q", out)
	}
	return win, nil
}

func (r RealInput) Type(text string) error {
	// A small inter-key delay keeps slow terminal emulators from dropping
	// characters; "--" guards bodies that begin with a dash.
	_, err := r.run("type", "--delay", "12", "--", text)
	return err
}

func (r RealInput) Key(key string) error {
	_, err := r.run("key", "--clearmodifiers", key)
	return err
}
