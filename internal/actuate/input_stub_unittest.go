//go:build unittest

package actuate

import "time"

// DefaultAttemptTimeout mirrors the production constant for unit builds.
const DefaultAttemptTimeout = 2 * time.Second

// RealInput is a no-op stub used during unit testing (build tag: unittest).
// The real implementation is in input_real.go.
type RealInput struct {
	Timeout time.Duration
}

func (RealInput) DisplayGeometry() (int, int, error) { return 0, 0, nil }
func (RealInput) MoveClick(x, y int) error           { return nil }
func (RealInput) ActiveWindow() (Window, error)      { return Window{}, nil }
func (RealInput) Type(text string) error             { return nil }
func (RealInput) Key(key string) error               { return nil }
