package actuate

import "sync"

// MockInput implements Input for testing. It records every call and can
// be programmed to fail a fixed number of times (or always) per method.
type MockInput struct {
	mu       sync.Mutex
	displayW int
	displayH int
	window   Window

	windowQueue     []Window
	displayErr      error
	activeWindowErr error
	moveClickFails  int // >0 counts down, -1 fails forever
	moveClickErr    error
	typeFails       int
	typeErr         error
	keyFails        int
	keyErr          error

	clicks []Click
	typed  []string
	keys   []string
}

// Click is one recorded MoveClick call.
type Click struct {
	X int
	Y int
}

// NewMockInput returns a mock with a 2560x1440 display and a single
// window covering all of it, so any in-bounds actuation succeeds.
func NewMockInput() *MockInput {
	return &MockInput{
		displayW: 2560,
		displayH: 1440,
		window:   Window{ID: "w1", X: 0, Y: 0, Width: 2560, Height: 1440},
	}
}

func (m *MockInput) DisplayGeometry() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.displayErr != nil {
		return 0, 0, m.displayErr
	}
	return m.displayW, m.displayH, nil
}

func (m *MockInput) MoveClick(x, y int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, Click{X: x, Y: y})
	if m.moveClickFails != 0 {
		if m.moveClickFails > 0 {
			m.moveClickFails--
		}
		return m.moveClickErr
	}
	return nil
}

func (m *MockInput) ActiveWindow() (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeWindowErr != nil {
		return Window{}, m.activeWindowErr
	}
	if len(m.windowQueue) > 0 {
		w := m.windowQueue[0]
		m.windowQueue = m.windowQueue[1:]
		return w, nil
	}
	return m.window, nil
}

func (m *MockInput) Type(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typed = append(m.typed, text)
	if m.typeFails != 0 {
		if m.typeFails > 0 {
			m.typeFails--
		}
		return m.typeErr
	}
	return nil
}

func (m *MockInput) Key(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	if m.keyFails != 0 {
		if m.keyFails > 0 {
			m.keyFails--
		}
		return m.keyErr
	}
	return nil
}

// --- Test helpers ---

// SetDisplay changes the reported display geometry.
func (m *MockInput) SetDisplay(w, h int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayW, m.displayH = w, h
}

// SetDisplayErr makes DisplayGeometry fail.
func (m *MockInput) SetDisplayErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayErr = err
}

// SetWindow changes the window reported by ActiveWindow.
func (m *MockInput) SetWindow(w Window) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window = w
}

// SetActiveWindowErr makes ActiveWindow fail.
func (m *MockInput) SetActiveWindowErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeWindowErr = err
}

// QueueWindows programs the next ActiveWindow calls to return these
// windows in order before falling back to the standing window.
func (m *MockInput) QueueWindows(ws ...Window) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windowQueue = append(m.windowQueue, ws...)
}

// FailMoveClick programs the next n MoveClick calls to return err.
// n = -1 fails every call.
func (m *MockInput) FailMoveClick(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveClickFails = n
	m.moveClickErr = err
}

// FailType programs the next n Type calls to return err. n = -1 fails
// every call.
func (m *MockInput) FailType(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeFails = n
	m.typeErr = err
}

// FailKey programs the next n Key calls to return err. n = -1 fails
// every call.
func (m *MockInput) FailKey(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyFails = n
	m.keyErr = err
}

// Clicks returns a copy of all recorded MoveClick calls.
func (m *MockInput) Clicks() []Click {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Click, len(m.clicks))
	copy(out, m.clicks)
	return out
}

// ClickCount returns the number of MoveClick calls.
func (m *MockInput) ClickCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clicks)
}

// Typed returns a copy of all recorded Type payloads.
func (m *MockInput) Typed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.typed))
	copy(out, m.typed)
	return out
}

// Keys returns a copy of all recorded Key calls.
func (m *MockInput) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}
