package logging

import (
	"bytes"
	"sync"
)

// Buffer is an unbounded, append-only collection of log lines shared between
// the download workers (writers, through a zerolog logger) and the console
// renderer (reader). It replaces any fixed-size accumulation scheme: lines are
// never dropped or truncated.
type Buffer struct {
	mu      sync.Mutex
	lines   []string
	partial bytes.Buffer
}

// Write implements io.Writer so the buffer can sit behind a
// zerolog.ConsoleWriter. Input is split on newlines; an unterminated tail is
// held back until the next write completes it.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		b.lines = append(b.lines, string(data[:idx]))
		b.partial.Next(idx + 1)
	}
	return len(p), nil
}

// Append adds a single pre-formatted line.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
}

// Lines returns a copy of all accumulated lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Tail returns a copy of the most recent n lines.
func (b *Buffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.lines) {
		n = len(b.lines)
	}
	out := make([]string, n)
	copy(out, b.lines[len(b.lines)-n:])
	return out
}

// Len returns the number of complete lines accumulated so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
