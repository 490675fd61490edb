package compare

import (
	"strings"
	"testing"

	"swfdiff/internal/sandbox/result"
	appErr "swfdiff/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(status result.ExitStatus, out string) result.ExecutionResult {
	return result.ExecutionResult{Status: status, Output: []byte(out), OutputObserved: out != ""}
}

func newComparator(t *testing.T) *Comparator {
	t.Helper()
	c, err := New(Config{Sentinel: "#CASE_COMPLETE#", BenignPatterns: []string{`Warning: .*`}})
	require.NoError(t, err)
	return c
}

func TestCompareTable(t *testing.T) {
	const (
		done  = result.StatusCompleted
		crash = result.StatusCrashed
		hang  = result.StatusTimedOut
		fail  = result.StatusLaunchFailed
	)
	cases := []struct {
		name           string
		native, oracle result.ExecutionResult
		want           Verdict
	}{
		{"same output", run(done, "a\n"), run(done, "a\n"), Verdict{Kind: KindMatch}},
		{"different output", run(done, "a\n"), run(done, "b\n"), Verdict{KindDiverge, ReasonOutputMismatch}},
		{"native crash", run(crash, ""), run(done, "a\n"), Verdict{KindDiverge, ReasonCrashMismatch}},
		{"oracle crash", run(done, "a\n"), run(crash, ""), Verdict{KindDiverge, ReasonCrashMismatch}},
		{"both crash same output", run(crash, "x\n"), run(crash, "x\n"), Verdict{Kind: KindMatch}},
		{"both crash different output", run(crash, "x\n"), run(crash, "y\n"), Verdict{KindDiverge, ReasonOutputMismatch}},
		{"both hang", run(hang, ""), run(hang, ""), Verdict{KindInconclusive, ReasonBothTimedOut}},
		{"native hang", run(hang, "1\n"), run(done, "1\n2\n#CASE_COMPLETE#\n"), Verdict{KindDiverge, ReasonTimeoutMismatch}},
		{"oracle hang after same output", run(done, "1\n"), run(hang, "1\n"), Verdict{Kind: KindMatch}},
		{"oracle hang vs crash", run(crash, "x\n"), run(hang, ""), Verdict{KindDiverge, ReasonTimeoutMismatch}},
		{"oracle launch failed", run(done, "a\n"), run(fail, ""), Verdict{KindInconclusive, ReasonInfrastructure}},
		{"native launch failed beats crash", run(fail, ""), run(crash, ""), Verdict{KindInconclusive, ReasonInfrastructure}},
		{"interception miss on both", run(done, ""), run(done, ""), Verdict{Kind: KindMatch}},
		{"interception miss on oracle", run(done, "a\n"), run(done, ""), Verdict{KindDiverge, ReasonOutputMismatch}},
	}
	c := newComparator(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Compare(tc.native, tc.oracle))
			// Pure: asking again gives the same answer.
			assert.Equal(t, tc.want, c.Compare(tc.native, tc.oracle))
		})
	}
}

func TestNormalize(t *testing.T) {
	c := newComparator(t)
	cases := []struct {
		name, in, want string
	}{
		{"crlf", "a\r\nb\r\n", "a\nb\n"},
		{"trailing blanks", "a  \t\nb\n", "a\nb\n"},
		{"internal blank runs", "a   b\t\tc\n", "a b c\n"},
		{"blank lines", "a\n\n\n   \nb\n", "a\nb\n"},
		{"timestamps", "2024-01-02T03:04:05.123Z started\nat 12:34:56 done\n", "started\nat done\n"},
		{"benign noise", "x\nWarning: slow script\ny\n", "x\ny\n"},
		{"after sentinel", "a\n#CASE_COMPLETE#\nquit noise\n", "a\n#CASE_COMPLETE#\n"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Normalizer().Normalize([]byte(tc.in)))
		})
	}
}

func TestNormalizationMakesNoiseMatch(t *testing.T) {
	c := newComparator(t)
	native := run(result.StatusCompleted, "1\r\nundefined   \n#CASE_COMPLETE#\n")
	oracle := run(result.StatusCompleted, "1\n\nundefined\n#CASE_COMPLETE#\nflashlog closed\n")
	assert.Equal(t, Verdict{Kind: KindMatch}, c.Compare(native, oracle))
	assert.Empty(t, c.Diff(native, oracle))
}

func TestDiff(t *testing.T) {
	c := newComparator(t)
	d := c.Diff(run(result.StatusCompleted, "a\nb\n"), run(result.StatusCompleted, "a\nc\n"))
	assert.True(t, strings.HasPrefix(d, "--- native\n+++ oracle\n"), d)
	assert.Contains(t, d, "-b\n")
	assert.Contains(t, d, "+c\n")
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(Config{BenignPatterns: []string{"("}})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigInvalid))
}

func TestOneSidedTimeoutPolicy(t *testing.T) {
	hung := run(result.StatusTimedOut, "1\n")
	done := run(result.StatusCompleted, "1\n2\n")

	c, err := New(Config{})
	require.NoError(t, err)
	v := c.Compare(hung, done)
	assert.Equal(t, Verdict{KindDiverge, ReasonTimeoutMismatch}, v)
	assert.True(t, v.IsFailure())

	c, err = New(Config{OneSidedTimeout: OneSidedInconclusive})
	require.NoError(t, err)
	v = c.Compare(hung, done)
	assert.Equal(t, Verdict{KindInconclusive, ReasonTimeoutMismatch}, v)
	assert.False(t, v.IsFailure())

	_, err = New(Config{OneSidedTimeout: "ignore"})
	assert.True(t, appErr.Is(err, appErr.ConfigInvalid))
}

func TestTimestampStrippingCanBeDisabled(t *testing.T) {
	off := false
	c, err := New(Config{StripTimestamps: &off})
	require.NoError(t, err)
	assert.Equal(t, "12:00:00\n", c.Normalizer().Normalize([]byte("12:00:00\n")))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "Match", Verdict{Kind: KindMatch}.String())
	assert.Equal(t, "Diverge{crash-mismatch}", Verdict{KindDiverge, ReasonCrashMismatch}.String())
	assert.True(t, Verdict{KindDiverge, ReasonOutputMismatch}.IsFailure())
	assert.False(t, Verdict{KindInconclusive, ReasonBothTimedOut}.IsFailure())
}
