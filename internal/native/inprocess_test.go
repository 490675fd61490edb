package native

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"swfdiff/internal/generator"
	"swfdiff/internal/sandbox/result"
	appErr "swfdiff/pkg/errors"
)

type fakeInterpreter struct {
	execute func(ctx context.Context, swf []byte) ([]byte, error)
}

func (f fakeInterpreter) Execute(ctx context.Context, swf []byte) ([]byte, error) {
	return f.execute(ctx, swf)
}

func TestInProcessOutcomes(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	cases := []struct {
		name    string
		execute func(ctx context.Context, swf []byte) ([]byte, error)
		want    result.ExitStatus
		detail  string
	}{
		{
			name: "completed",
			execute: func(ctx context.Context, swf []byte) ([]byte, error) {
				return []byte("hello\n"), nil
			},
			want: result.StatusCompleted,
		},
		{
			name: "panic",
			execute: func(ctx context.Context, swf []byte) ([]byte, error) {
				var m map[string]int
				m["boom"]++
				return nil, nil
			},
			want:   result.StatusCrashed,
			detail: "assignment to entry in nil map",
		},
		{
			name: "ignores deadline",
			execute: func(ctx context.Context, swf []byte) ([]byte, error) {
				<-release
				return []byte("late"), nil
			},
			want: result.StatusTimedOut,
		},
		{
			name: "honours deadline",
			execute: func(ctx context.Context, swf []byte) ([]byte, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			want: result.StatusTimedOut,
		},
		{
			name: "unsupported",
			execute: func(ctx context.Context, swf []byte) ([]byte, error) {
				return nil, appErr.New(appErr.ActionUnsupported)
			},
			want: result.StatusLaunchFailed,
		},
		{
			name: "internal error",
			execute: func(ctx context.Context, swf []byte) ([]byte, error) {
				return []byte("partial"), errors.New("stack underflow")
			},
			want:   result.StatusCrashed,
			detail: "stack underflow",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewInProcess(Config{Timeout: 100 * time.Millisecond}, fakeInterpreter{execute: tc.execute})
			res := r.Run(context.Background(), nil)
			if res.Status != tc.want {
				t.Fatalf("status = %s, want %s (%s)", res.Status, tc.want, res.Detail)
			}
			if tc.detail != "" && !strings.Contains(res.Detail, tc.detail) {
				t.Fatalf("detail = %q, want it to mention %q", res.Detail, tc.detail)
			}
			if res.Status == result.StatusTimedOut && len(res.Output) != 0 {
				t.Fatalf("abandoned run leaked output %q", res.Output)
			}
		})
	}
}

func TestAVM1InterpreterRunsGeneratedInput(t *testing.T) {
	r, err := New(Config{}, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sample, err := generator.Generate(42, generator.DefaultConfig())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	res := r.Run(context.Background(), sample.Bytes)
	if res.Status != result.StatusCompleted {
		t.Fatalf("status = %s (%s)", res.Status, res.Detail)
	}
	if !strings.Contains(string(res.Output), generator.DefaultCompletionSentinel) {
		t.Fatalf("output lacks completion sentinel: %q", res.Output)
	}
}

func TestAVM1InterpreterRejectsGarbage(t *testing.T) {
	r, err := New(Config{}, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res := r.Run(context.Background(), []byte("not a swf")); res.Status != result.StatusLaunchFailed {
		t.Fatalf("status = %s, want LaunchFailed", res.Status)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Mode: ModeSubprocess}).WithDefaults().Validate(); !appErr.Is(err, appErr.ConfigInvalid) {
		t.Fatalf("subprocess without binary: %v", err)
	}
	if err := (Config{Mode: "jit"}).Validate(); !appErr.Is(err, appErr.ConfigInvalid) {
		t.Fatalf("unknown mode: %v", err)
	}
	if err := (Config{}).WithDefaults().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}
