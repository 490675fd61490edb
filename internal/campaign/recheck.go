package campaign

import (
	"context"
	"strings"

	"swfdiff/internal/compare"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/store"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
)

// FailureSource is the read side of the failure store.
type FailureSource interface {
	List(ctx context.Context, offset, limit int) ([]store.FailureRecord, int64, error)
	Artifact(ctx context.Context, fingerprint, name string) ([]byte, error)
}

// RecheckResult is the current verdict for one stored failure.
type RecheckResult struct {
	Fingerprint string          `json:"fingerprint"`
	Reason      string          `json:"reason"`
	Verdict     compare.Verdict `json:"verdict"`
	Native      string          `json:"native"`
	Error       string          `json:"error,omitempty"`
}

// Fixed reports whether the stored divergence no longer reproduces.
func (r RecheckResult) Fixed() bool {
	return r.Error == "" && r.Verdict.Kind == compare.KindMatch
}

// RecheckSummary counts recheck outcomes.
type RecheckSummary struct {
	Total        int `json:"total"`
	StillFailing int `json:"still_failing"`
	Fixed        int `json:"fixed"`
	Inconclusive int `json:"inconclusive"`
	Errors       int `json:"errors"`
}

const recheckPageSize = 100

// Recheck replays every stored input through native and compares the fresh
// run with the stored oracle output. The oracle itself is not re-run.
func Recheck(ctx context.Context, src FailureSource, native Runner, cmp Comparer, each func(RecheckResult)) (RecheckSummary, error) {
	var sum RecheckSummary
	for offset := 0; ; offset += recheckPageSize {
		records, total, err := src.List(ctx, offset, recheckPageSize)
		if err != nil {
			return sum, err
		}
		for _, rec := range records {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			r := recheckOne(ctx, src, native, cmp, rec)
			sum.Total++
			switch {
			case r.Error != "":
				sum.Errors++
			case r.Verdict.IsFailure():
				sum.StillFailing++
			case r.Verdict.Kind == compare.KindMatch:
				sum.Fixed++
			default:
				sum.Inconclusive++
			}
			if each != nil {
				each(r)
			}
		}
		if len(records) == 0 || int64(offset+len(records)) >= total {
			return sum, nil
		}
	}
}

func recheckOne(ctx context.Context, src FailureSource, native Runner, cmp Comparer, rec store.FailureRecord) RecheckResult {
	r := RecheckResult{Fingerprint: rec.Fingerprint, Reason: rec.Reason}
	swf, err := src.Artifact(ctx, rec.Fingerprint, store.ArtifactSWF)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	oracleOut, err := src.Artifact(ctx, rec.Fingerprint, store.ArtifactOracle)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	oracle := result.ExecutionResult{
		Status:         statusOf(rec.OracleStatus),
		Output:         oracleOut,
		OutputObserved: len(oracleOut) > 0,
	}
	res := native.Run(ctx, swf)
	r.Native = res.Describe()
	r.Verdict = cmp.Compare(res, oracle)
	logger.Debug(ctx, "rechecked failure",
		zap.String("fingerprint", rec.Fingerprint),
		zap.String("verdict", r.Verdict.String()),
	)
	return r
}

// statusOf recovers the exit status from an ExecutionResult.Describe string.
func statusOf(described string) result.ExitStatus {
	head, _, _ := strings.Cut(described, " ")
	return result.ExitStatus(strings.TrimSuffix(head, ":"))
}
