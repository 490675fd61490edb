//go:build linux

package native

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"swfdiff/internal/sandbox/engine"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/sandbox/spec"
	"swfdiff/pkg/utils/contextkey"
)

func TestSubprocessRunner(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ruffle")
	script := "#!/bin/sh\ncat \"$1\"; echo; echo '#CASE_COMPLETE#'; sleep 30\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	workDir := filepath.Join(t.TempDir(), "native")
	r, err := New(Config{Mode: ModeSubprocess, Binary: bin, Timeout: 5 * time.Second}, engine.NewEngine(engine.Config{}), workDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := r.Run(context.Background(), []byte("payload"))
	if res.Status != result.StatusCompleted {
		t.Fatalf("status = %s (%s)", res.Status, res.Detail)
	}
	if string(res.Output) != "payload\n#CASE_COMPLETE#\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if entries, _ := os.ReadDir(workDir); len(entries) != 0 {
		t.Fatalf("inputs left behind: %v", entries)
	}
}

type runIDEngine struct {
	specID, ctxID string
}

func (e *runIDEngine) Run(ctx context.Context, rs spec.RunSpec) (result.ExecutionResult, error) {
	e.specID = rs.RunID
	e.ctxID, _ = ctx.Value(contextkey.RunID).(string)
	return result.ExecutionResult{Status: result.StatusCompleted}, nil
}

func TestSubprocessTagsContextWithRunID(t *testing.T) {
	eng := &runIDEngine{}
	r, err := New(Config{Mode: ModeSubprocess, Binary: "/bin/true"}, eng, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Run(context.Background(), []byte("FWS"))
	if eng.specID == "" || eng.ctxID != eng.specID {
		t.Fatalf("ctx run id %q, spec run id %q", eng.ctxID, eng.specID)
	}
}
