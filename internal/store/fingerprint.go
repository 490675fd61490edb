package store

import (
	"crypto/sha256"
	"encoding/hex"

	appErr "swfdiff/pkg/errors"
)

// Policy selects what the fingerprint hashes.
type Policy string

const (
	// PolicyDiff hashes the verdict reason and the normalized diff, so seeds
	// that hit the same root cause share a record.
	PolicyDiff Policy = "diff"
	// PolicyRaw hashes the verdict reason and both raw outputs.
	PolicyRaw Policy = "raw"
)

// ParsePolicy accepts "" as PolicyDiff.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyDiff:
		return PolicyDiff, nil
	case PolicyRaw:
		return PolicyRaw, nil
	}
	return "", appErr.ConfigError("store.fingerprint", "must be diff or raw")
}

// Fingerprint computes the hex sha256 identity of a case under policy.
func Fingerprint(policy Policy, c Case, diff string) string {
	h := sha256.New()
	h.Write([]byte(c.Verdict.Reason))
	h.Write([]byte{0})
	if policy == PolicyRaw {
		h.Write(c.Native.Output)
		h.Write([]byte{0})
		h.Write(c.Oracle.Output)
	} else {
		h.Write([]byte(diff))
	}
	return hex.EncodeToString(h.Sum(nil))
}
