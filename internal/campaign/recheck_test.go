package campaign

import (
	"context"
	"fmt"
	"testing"

	"swfdiff/internal/compare"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/store"
	appErr "swfdiff/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	records   []store.FailureRecord
	artifacts map[string][]byte
	lists     int
}

func (m *memSource) List(ctx context.Context, offset, limit int) ([]store.FailureRecord, int64, error) {
	m.lists++
	total := int64(len(m.records))
	if offset >= len(m.records) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], total, nil
}

func (m *memSource) Artifact(ctx context.Context, fp, name string) ([]byte, error) {
	data, ok := m.artifacts[fp+"/"+name]
	if !ok {
		return nil, appErr.Newf(appErr.FailureNotFound, "%s/%s", fp, name)
	}
	return data, nil
}

func (m *memSource) add(fp, oracleStatus string, swf, oracle []byte) {
	m.records = append(m.records, store.FailureRecord{Fingerprint: fp, Reason: "output-mismatch", OracleStatus: oracleStatus})
	if swf != nil {
		m.artifacts[fp+"/"+store.ArtifactSWF] = swf
	}
	m.artifacts[fp+"/"+store.ArtifactOracle] = oracle
}

// echoRunner prints the input back, so each stored swf decides its own output.
type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, swf []byte) result.ExecutionResult {
	return result.ExecutionResult{Status: result.StatusCompleted, Output: swf, OutputObserved: true}
}

func TestRecheck(t *testing.T) {
	src := &memSource{artifacts: map[string][]byte{}}
	src.add("fixed", "Completed", []byte("1\n"), []byte("1\n"))
	src.add("still", "Completed", []byte("1\n"), []byte("2\n"))
	src.add("crash", "Crashed (SIGSEGV)", []byte("1\n"), []byte("1\n"))
	src.add("slow", "TimedOut", []byte("1\n"), nil)
	src.add("gone", "Completed", nil, []byte("1\n"))

	var got []RecheckResult
	sum, err := Recheck(context.Background(), src, echoRunner{}, comparator(t), func(r RecheckResult) {
		got = append(got, r)
	})
	require.NoError(t, err)
	assert.Equal(t, RecheckSummary{Total: 5, StillFailing: 3, Fixed: 1, Errors: 1}, sum)
	require.Len(t, got, 5)
	assert.True(t, got[0].Fixed())
	assert.Equal(t, compare.Verdict{Kind: compare.KindDiverge, Reason: compare.ReasonOutputMismatch}, got[1].Verdict)
	assert.Equal(t, compare.Verdict{Kind: compare.KindDiverge, Reason: compare.ReasonCrashMismatch}, got[2].Verdict)
	// The oracle hung before printing; native output still differs from it.
	assert.Equal(t, compare.Verdict{Kind: compare.KindDiverge, Reason: compare.ReasonTimeoutMismatch}, got[3].Verdict)
	assert.NotEmpty(t, got[4].Error)
	assert.False(t, got[4].Fixed())
}

func TestRecheckPages(t *testing.T) {
	src := &memSource{artifacts: map[string][]byte{}}
	for i := 0; i < recheckPageSize+5; i++ {
		src.add(fmt.Sprintf("fp%03d", i), "Completed", []byte("x\n"), []byte("x\n"))
	}
	sum, err := Recheck(context.Background(), src, echoRunner{}, comparator(t), nil)
	require.NoError(t, err)
	assert.Equal(t, recheckPageSize+5, sum.Fixed)
	assert.Equal(t, 2, src.lists)
}

func TestRecheckStopsOnCancel(t *testing.T) {
	src := &memSource{artifacts: map[string][]byte{}}
	src.add("a", "Completed", []byte("x\n"), []byte("y\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Recheck(ctx, src, echoRunner{}, comparator(t), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusOf(t *testing.T) {
	cases := map[string]result.ExitStatus{
		"Completed":                  result.StatusCompleted,
		"TimedOut":                   result.StatusTimedOut,
		"Crashed (SIGSEGV)":          result.StatusCrashed,
		"Crashed (exit 3)":           result.StatusCrashed,
		"LaunchFailed: no such file": result.StatusLaunchFailed,
	}
	for in, want := range cases {
		assert.Equal(t, want, statusOf(in), in)
	}
	for _, r := range []result.ExecutionResult{
		{Status: result.StatusCrashed, Signal: "SIGABRT"},
		{Status: result.StatusCrashed, ExitCode: 1},
		result.LaunchFailure(fmt.Errorf("boom")),
		{Status: result.StatusTimedOut},
	} {
		assert.Equal(t, r.Status, statusOf(r.Describe()))
	}
}
