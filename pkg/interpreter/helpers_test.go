package interpreter

import (
	"bytes"
	"testing"

	"github.com/inobulles/flamingo/pkg/runtime"
)

// runSource runs src as test.fl and returns everything it printed.
func runSource(t *testing.T, src string, opts ...Option) (string, error) {
	t.Helper()
	var out bytes.Buffer
	interp, err := New("test.fl", []byte(src), append([]Option{WithOutput(&out)}, opts...)...)
	if err != nil {
		return out.String(), err
	}
	defer interp.Destroy()
	err = interp.Run()
	return out.String(), err
}

func mustRun(t *testing.T, src string, opts ...Option) string {
	t.Helper()
	out, err := runSource(t, src, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

// newInterp builds an interpreter without running it. It is destroyed when
// the test ends.
func newInterp(t *testing.T, src string, opts ...Option) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	interp, err := New("test.fl", []byte(src), append([]Option{WithOutput(&out)}, opts...)...)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	t.Cleanup(interp.Destroy)
	return interp, &out
}

// liveDelta reports how many values created by fn are still alive after it
// returns.
func liveDelta(fn func()) int64 {
	before := runtime.ReadCounters().Live()
	fn()
	return runtime.ReadCounters().Live() - before
}
