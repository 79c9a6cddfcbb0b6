package executor

import "context"

// Executor runs external commands. Kept behind an interface so media
// processing can be tested without ffmpeg installed.
type Executor interface {
	// Execute runs a command and returns its stdout. The context bounds the
	// command's wall-clock time.
	Execute(ctx context.Context, name string, args ...string) (string, error)
	// LookPath reports whether the named binary is on PATH.
	LookPath(name string) error
}
