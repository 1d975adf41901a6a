// Package fall - This file contains the bounded FIFO window used for shape statistics.
package fall

// DefaultWindowSize is the number of samples each rolling window keeps.
const DefaultWindowSize = 10

// Window is a fixed-capacity FIFO of samples backed by a ring buffer.
//
// Pushing into a full window evicts the oldest sample. The window never grows past
// its capacity regardless of stream length.
type Window struct {
	values []float64
	head   int // index of the oldest sample
	count  int
}

// NewWindow returns an empty window holding at most capacity samples.
// A non-positive capacity falls back to DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{values: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when the window is full.
func (w *Window) Push(v float64) {
	capacity := len(w.values)
	if w.count < capacity {
		w.values[(w.head+w.count)%capacity] = v
		w.count++
		return
	}
	w.values[w.head] = v
	w.head = (w.head + 1) % capacity
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.values)
}

// Values returns a copy of the samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.values[(w.head+i)%len(w.values)]
	}
	return out
}

// StdDev returns the population standard deviation of the held samples.
func (w *Window) StdDev() float64 {
	return StdDev(w.Values())
}

// Windows groups the five shape series tracked per frame.
type Windows struct {
	Angle *Window
	A     *Window
	B     *Window
	X     *Window
	Y     *Window
}

// NewWindows returns five empty windows of the given capacity.
func NewWindows(capacity int) *Windows {
	return &Windows{
		Angle: NewWindow(capacity),
		A:     NewWindow(capacity),
		B:     NewWindow(capacity),
		X:     NewWindow(capacity),
		Y:     NewWindow(capacity),
	}
}

// Push appends one sample derived from e to every window.
func (ws *Windows) Push(e Ellipse) {
	ws.Angle.Push(e.Angle)
	ws.A.Push(e.SemiA())
	ws.B.Push(e.SemiB())
	ws.X.Push(e.Center.X)
	ws.Y.Push(e.Center.Y)
}

// Len returns the number of samples in the windows. All five always move together.
func (ws *Windows) Len() int {
	return ws.Angle.Len()
}

// Stats reduces every window to its standard deviation.
func (ws *Windows) Stats() WindowStats {
	return WindowStats{
		Angle: ws.Angle.StdDev(),
		A:     ws.A.StdDev(),
		B:     ws.B.StdDev(),
		X:     ws.X.StdDev(),
		Y:     ws.Y.StdDev(),
	}
}

// WindowStats holds the standard deviation of each shape series.
type WindowStats struct {
	Angle float64 `json:"angle" yaml:"angle"`
	A     float64 `json:"a" yaml:"a"`
	B     float64 `json:"b" yaml:"b"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
}
