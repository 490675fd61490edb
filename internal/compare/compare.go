// Package compare decides whether a native run and an oracle run of the same
// input behaved the same.
package compare

import (
	"regexp"

	"swfdiff/internal/sandbox/result"
	appErr "swfdiff/pkg/errors"

	"github.com/pmezard/go-difflib/difflib"
)

// Config controls normalization and diff rendering.
type Config struct {
	Sentinel        string   `yaml:"sentinel"`
	StripTimestamps *bool    `yaml:"stripTimestamps"`
	BenignPatterns  []string `yaml:"benignPatterns"`
	ContextLines    int      `yaml:"contextLines"`
	// OneSidedTimeout is OneSidedCompare (default) or OneSidedInconclusive.
	OneSidedTimeout string `yaml:"oneSidedTimeout"`
}

// Policies for a pair where exactly one side timed out.
const (
	// OneSidedCompare compares whatever the hung side printed before its
	// deadline; a difference is filed as timeout-mismatch.
	OneSidedCompare = "compare"
	// OneSidedInconclusive discards the pair.
	OneSidedInconclusive = "inconclusive"
)

const defaultContextLines = 3

// Comparator is pure: the same pair of results always yields the same
// verdict and diff.
type Comparator struct {
	norm            *Normalizer
	context         int
	oneSidedTimeout string
}

// New compiles cfg into a Comparator.
func New(cfg Config) (*Comparator, error) {
	n := &Normalizer{sentinel: cfg.Sentinel, stripTimestamps: cfg.StripTimestamps == nil || *cfg.StripTimestamps}
	for i, p := range cfg.BenignPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "compare.benignPatterns[%d]", i)
		}
		n.benign = append(n.benign, re)
	}
	ctx := cfg.ContextLines
	if ctx <= 0 {
		ctx = defaultContextLines
	}
	policy := cfg.OneSidedTimeout
	switch policy {
	case "":
		policy = OneSidedCompare
	case OneSidedCompare, OneSidedInconclusive:
	default:
		return nil, appErr.ConfigError("compare.oneSidedTimeout", "must be compare or inconclusive")
	}
	return &Comparator{norm: n, context: ctx, oneSidedTimeout: policy}, nil
}

// Normalizer exposes the output canonicalization used for comparisons.
func (c *Comparator) Normalizer() *Normalizer {
	return c.norm
}

// Compare classifies a pair of results.
func (c *Comparator) Compare(native, oracle result.ExecutionResult) Verdict {
	n, o := native.Status, oracle.Status
	switch {
	case n == result.StatusLaunchFailed || o == result.StatusLaunchFailed:
		return Verdict{Kind: KindInconclusive, Reason: ReasonInfrastructure}
	case n == result.StatusTimedOut && o == result.StatusTimedOut:
		return Verdict{Kind: KindInconclusive, Reason: ReasonBothTimedOut}
	case n == result.StatusTimedOut || o == result.StatusTimedOut:
		if c.oneSidedTimeout == OneSidedInconclusive {
			return Verdict{Kind: KindInconclusive, Reason: ReasonTimeoutMismatch}
		}
		if c.norm.Normalize(native.Output) == c.norm.Normalize(oracle.Output) {
			return Verdict{Kind: KindMatch}
		}
		return Verdict{Kind: KindDiverge, Reason: ReasonTimeoutMismatch}
	case (n == result.StatusCrashed) != (o == result.StatusCrashed):
		return Verdict{Kind: KindDiverge, Reason: ReasonCrashMismatch}
	}
	if c.norm.Normalize(native.Output) == c.norm.Normalize(oracle.Output) {
		return Verdict{Kind: KindMatch}
	}
	return Verdict{Kind: KindDiverge, Reason: ReasonOutputMismatch}
}

// Diff renders a unified diff of the normalized outputs, native first.
func (c *Comparator) Diff(native, oracle result.ExecutionResult) string {
	a := difflib.SplitLines(c.norm.Normalize(native.Output))
	b := difflib.SplitLines(c.norm.Normalize(oracle.Output))
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "native",
		ToFile:   "oracle",
		Context:  c.context,
	})
	if err != nil {
		return ""
	}
	return text
}
