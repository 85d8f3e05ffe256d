package media

import (
	"context"
	"strings"
	"sync"
)

// fakeRunner records invocations and delegates to fn.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(name string, args []string) (CommandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.fn == nil {
		return CommandResult{}, nil
	}
	return f.fn(name, args)
}

func (f *fakeRunner) commandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = strings.Join(c, " ")
	}
	return lines
}

// argAfter returns the argument following flag.
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
