package engine

import (
	"bytes"
	"sync"
)

// captureWriter keeps at most limit bytes and fires onMarker once when marker
// shows up in the stream, including across write boundaries.
type captureWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int64
	written   int64
	truncated bool
	marker    []byte
	seen      bool
	onMarker  func()
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	fire := false
	w.written += int64(len(p))
	start := w.buf.Len() - len(w.marker) + 1
	if start < 0 {
		start = 0
	}
	room := w.limit - int64(w.buf.Len())
	if room > 0 {
		chunk := p
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
			w.truncated = true
		}
		w.buf.Write(chunk)
	} else if len(p) > 0 {
		w.truncated = true
	}
	if len(w.marker) > 0 && !w.seen && bytes.Contains(w.buf.Bytes()[start:], w.marker) {
		w.seen = true
		fire = w.onMarker != nil
	}
	w.mu.Unlock()
	if fire {
		w.onMarker()
	}
	// Report the full length so the pipe copier keeps draining the child.
	return len(p), nil
}

func (w *captureWriter) snapshot() (data []byte, observed, truncated, seen bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.buf.Bytes()), w.written > 0, w.truncated, w.seen
}

// groupKill delivers a marker kill to a process group whose pid may not be
// known yet: pipe copiers start inside cmd.Start, so the marker can arrive
// first. Whichever of fire and arm comes second does the kill.
type groupKill struct {
	mu    sync.Mutex
	pid   int
	fired bool
	kill  func(pid int)
}

func (g *groupKill) fire() {
	g.mu.Lock()
	g.fired = true
	pid := g.pid
	g.mu.Unlock()
	if pid > 0 {
		g.kill(pid)
	}
}

func (g *groupKill) arm(pid int) {
	g.mu.Lock()
	g.pid = pid
	fired := g.fired
	g.mu.Unlock()
	if fired {
		g.kill(pid)
	}
}
