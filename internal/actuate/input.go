// Package actuate delivers envelopes to agent windows, either by
// simulating input at their registered screen coordinates or by dropping
// artifacts into their durable inboxes.
package actuate

// Input abstracts the low-level input effector for testability.
type Input interface {
	DisplayGeometry() (width, height int, err error)
	MoveClick(x, y int) error
	ActiveWindow() (Window, error)
	Type(text string) error
	Key(key string) error
}

// Window describes a window in global display space.
type Window struct {
	ID     string
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether a point falls inside the window's rectangle.
func (w Window) Contains(x, y int) bool {
	return x >= w.X && x < w.X+w.Width && y >= w.Y && y < w.Y+w.Height
}

// DefaultInput is the default effector used by the package.
// Set to RealInput{} in input_real.go (excluded from test builds via build tag).
var DefaultInput Input = RealInput{}
