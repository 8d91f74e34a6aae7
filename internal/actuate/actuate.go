package actuate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stationhouse/switchboard/internal/envelope"
	"github.com/stationhouse/switchboard/internal/registry"
)

// Classified actuation failures. Direct actuation failing is an expected,
// frequent condition; these travel inside a Result rather than being
// returned as errors. ErrStorageUnavailable is the exception: losing the
// file fallback removes the safety net and is fatal.
var (
	ErrTargetUnresponsive = errors.New("actuate: target unresponsive")
	ErrInputRejected      = errors.New("actuate: input rejected")
	ErrCoordinateInvalid  = errors.New("actuate: coordinate invalid")
	ErrStorageUnavailable = errors.New("actuate: inbox storage unavailable")
)

// Retryable reports whether a classified failure is worth another direct
// attempt. Coordinate problems never heal on retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrTargetUnresponsive) || errors.Is(err, ErrInputRejected)
}

// Channel identifies which delivery strategy produced a result.
type Channel string

const (
	ChannelDirect Channel = "direct"
	ChannelFile   Channel = "file_fallback"
)

// Result reports one delivery outcome for a single (envelope, recipient)
// pair. Err carries the classified failure when Success is false.
type Result struct {
	Channel  Channel
	Success  bool
	Attempts int
	Err      error
}

// Opts configures an Actuator.
type Opts struct {
	Input     Input  // defaults to DefaultInput
	InboxRoot string // directory holding one inbox subdirectory per agent
	Now       func() time.Time
}

// Actuator performs direct actuation and file-drop delivery. Direct and
// Poke manipulate shared pointer/keyboard focus: callers must hold the
// dispatch lock so two actuations never interleave. Drop has no such
// requirement and may run concurrently.
type Actuator struct {
	input     Input
	inboxRoot string
	now       func() time.Time
}

// New creates an Actuator.
func New(opts Opts) (*Actuator, error) {
	if opts.InboxRoot == "" {
		return nil, fmt.Errorf("actuate: inbox root is required")
	}
	if opts.Input == nil {
		opts.Input = DefaultInput
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Actuator{input: opts.Input, inboxRoot: opts.InboxRoot, now: opts.Now}, nil
}

// Direct focuses the coordinate, injects the envelope as typed input, and
// verifies the input was accepted. Failures come back classified in the
// result, never as a returned error.
func (a *Actuator) Direct(coord registry.Coordinate, recipient string, env *envelope.Envelope) Result {
	res := Result{Channel: ChannelDirect, Attempts: 1}

	win, ok := a.focus(coord, &res)
	if !ok {
		return res
	}
	if err := a.input.Type(envelope.Injection(env, recipient)); err != nil {
		res.Err = fmt.Errorf("%w: type: %v", ErrInputRejected, err)
		return res
	}
	if err := a.input.Key("Return"); err != nil {
		res.Err = fmt.Errorf("%w: submit: %v", ErrInputRejected, err)
		return res
	}

	// Acceptance check: the target window must still hold focus after the
	// injection, otherwise something stole it and the input may have been
	// misdirected.
	after, err := a.input.ActiveWindow()
	if err != nil {
		res.Err = fmt.Errorf("%w: verify focus: %v", ErrInputRejected, err)
		return res
	}
	if after.ID != win.ID {
		res.Err = fmt.Errorf("%w: focus moved to window %s during injection", ErrInputRejected, after.ID)
		return res
	}

	res.Success = true
	return res
}

// Poke focuses the coordinate and presses Return without any payload,
// re-triggering a stalled endpoint's input handling.
func (a *Actuator) Poke(coord registry.Coordinate) Result {
	res := Result{Channel: ChannelDirect, Attempts: 1}
	if _, ok := a.focus(coord, &res); !ok {
		return res
	}
	if err := a.input.Key("Return"); err != nil {
		res.Err = fmt.Errorf("%w: submit: %v", ErrInputRejected, err)
		return res
	}
	res.Success = true
	return res
}

// focus validates the coordinate against the live display, clicks it, and
// confirms the click landed in the now-active window. On failure it fills
// res.Err and returns ok=false.
func (a *Actuator) focus(coord registry.Coordinate, res *Result) (Window, bool) {
	w, h, err := a.input.DisplayGeometry()
	if err != nil {
		res.Err = fmt.Errorf("%w: display geometry: %v", ErrTargetUnresponsive, err)
		return Window{}, false
	}
	if coord.X < 0 || coord.X >= w || coord.Y < 0 || coord.Y >= h {
		res.Err = fmt.Errorf("%w: (%d,%d) outside display %dx%d", ErrCoordinateInvalid, coord.X, coord.Y, w, h)
		return Window{}, false
	}
	if err := a.input.MoveClick(coord.X, coord.Y); err != nil {
		res.Err = fmt.Errorf("%w: focus click: %v", ErrTargetUnresponsive, err)
		return Window{}, false
	}
	win, err := a.input.ActiveWindow()
	if err != nil {
		res.Err = fmt.Errorf("%w: active window: %v", ErrTargetUnresponsive, err)
		return Window{}, false
	}
	if !win.Contains(coord.X, coord.Y) {
		res.Err = fmt.Errorf("%w: focus not acquired at (%d,%d)", ErrTargetUnresponsive, coord.X, coord.Y)
		return Window{}, false
	}
	return win, true
}

// Drop serializes the envelope to a uniquely named artifact in the
// recipient's inbox. The write is atomic (temp file + rename) so readers
// never observe a partial artifact. A non-nil error means the storage
// medium itself is unavailable; treat it as fatal.
func (a *Actuator) Drop(recipient string, env *envelope.Envelope) (Result, error) {
	res := Result{Channel: ChannelFile, Attempts: 1}

	dir := filepath.Join(a.inboxRoot, recipient)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Err = fmt.Errorf("%w: mkdir %s: %v", ErrStorageUnavailable, dir, err)
		return res, res.Err
	}

	name := fmt.Sprintf("%s-%s.msg", a.now().UTC().Format("20060102T150405.000"), env.ID)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".drop-*")
	if err != nil {
		res.Err = fmt.Errorf("%w: create temp in %s: %v", ErrStorageUnavailable, dir, err)
		return res, res.Err
	}
	if _, err := tmp.WriteString(envelope.Artifact(env, recipient)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		res.Err = fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, final, err)
		return res, res.Err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		res.Err = fmt.Errorf("%w: close %s: %v", ErrStorageUnavailable, final, err)
		return res, res.Err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		res.Err = fmt.Errorf("%w: rename %s: %v", ErrStorageUnavailable, final, err)
		return res, res.Err
	}

	res.Success = true
	return res, nil
}
