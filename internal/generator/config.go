package generator

import (
	"slices"

	"swfdiff/internal/swf"
	appErr "swfdiff/pkg/errors"
)

const (
	DefaultCompletionSentinel = "#CASE_COMPLETE#"
	DefaultStackSentinel      = "#PREFIX#"
	DefaultMaxRetries         = 8
	DefaultMaxTags            = 16
	DefaultMaxDocumentBytes   = 64 << 10

	minSupportedVersion = 1
	maxSupportedVersion = 43
)

// OptionalTags are the tags the generator may add around the script tags.
var OptionalTags = []swf.TagCode{
	swf.TagSetBackgroundColor,
	swf.TagEnableDebugger2,
	swf.TagScriptLimits,
	swf.TagProtect,
	swf.TagMetadata,
	swf.TagFrameLabel,
}

// ModeWeights sets the relative frequency of each script case kind.
// A zero weight disables the kind.
type ModeWeights struct {
	Opcode      int
	StaticCall  int
	DynamicCall int
}

func (w ModeWeights) total() int {
	return w.Opcode + w.StaticCall + w.DynamicCall
}

// Config fully determines the shape of generated documents. Together with a
// seed it determines the bytes.
type Config struct {
	IncludeTags []swf.TagCode // empty: every optional tag is allowed
	ExcludeTags []swf.TagCode

	MaxTags          int
	MaxDocumentBytes int

	VersionMin     uint8
	VersionMax     uint8
	FrameRateMin   float64
	FrameRateMax   float64
	FrameWidthMin  int // pixels
	FrameWidthMax  int
	FrameHeightMin int
	FrameHeightMax int

	Modes        ModeWeights
	TestsPerCase int

	EdgeCases     bool
	Compress      bool
	RandomStrings bool
	RandomInts    bool
	IntStrings    bool
	NaNDoubles    bool

	MaxRetries         int
	CompletionSentinel string
	StackSentinel      string
}

// DefaultConfig mirrors the reference harness: one dynamic-call case per
// document, version 32, a 10x10 stage at 60 fps.
func DefaultConfig() Config {
	return Config{
		MaxTags:            DefaultMaxTags,
		MaxDocumentBytes:   DefaultMaxDocumentBytes,
		VersionMin:         32,
		VersionMax:         32,
		FrameRateMin:       60,
		FrameRateMax:       60,
		FrameWidthMin:      10,
		FrameWidthMax:      10,
		FrameHeightMin:     10,
		FrameHeightMax:     10,
		Modes:              ModeWeights{DynamicCall: 1},
		TestsPerCase:       1,
		MaxRetries:         DefaultMaxRetries,
		CompletionSentinel: DefaultCompletionSentinel,
		StackSentinel:      DefaultStackSentinel,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.VersionMin < minSupportedVersion || c.VersionMax > maxSupportedVersion:
		return appErr.ConfigError("generator.version", "must be within 1..43")
	case c.VersionMin > c.VersionMax:
		return appErr.ConfigError("generator.version", "min exceeds max")
	case c.FrameRateMin <= 0 || c.FrameRateMin > c.FrameRateMax || c.FrameRateMax >= 256:
		return appErr.ConfigError("generator.frameRate", "range must be within (0, 256) and ordered")
	case c.FrameWidthMin < 0 || c.FrameWidthMin > c.FrameWidthMax:
		return appErr.ConfigError("generator.frameWidth", "range must be non-negative and ordered")
	case c.FrameHeightMin < 0 || c.FrameHeightMin > c.FrameHeightMax:
		return appErr.ConfigError("generator.frameHeight", "range must be non-negative and ordered")
	case c.FrameWidthMax > 1<<20 || c.FrameHeightMax > 1<<20:
		return appErr.ConfigError("generator.frameSize", "must stay below 1048576 pixels")
	case c.MaxTags < 2:
		return appErr.ConfigError("generator.maxTags", "must allow at least DoAction and ShowFrame")
	case c.MaxDocumentBytes < 64:
		return appErr.ConfigError("generator.maxDocumentBytes", "must be at least 64")
	case c.Modes.Opcode < 0 || c.Modes.StaticCall < 0 || c.Modes.DynamicCall < 0 || c.Modes.total() == 0:
		return appErr.ConfigError("generator.modes", "weights must be non-negative with at least one enabled")
	case c.TestsPerCase < 1:
		return appErr.ConfigError("generator.testsPerCase", "must be positive")
	case c.MaxRetries < 0:
		return appErr.ConfigError("generator.maxRetries", "must not be negative")
	case c.CompletionSentinel == "" || c.StackSentinel == "":
		return appErr.ConfigError("generator.sentinel", "sentinels must not be empty")
	case slices.Contains(c.ExcludeTags, swf.TagDoAction) || slices.Contains(c.ExcludeTags, swf.TagShowFrame):
		return appErr.ConfigError("generator.excludeTags", "DoAction and ShowFrame are required")
	}
	return nil
}

func (c Config) allowed(code swf.TagCode) bool {
	if slices.Contains(c.ExcludeTags, code) {
		return false
	}
	return len(c.IncludeTags) == 0 || slices.Contains(c.IncludeTags, code)
}

func (c Config) bounds() swf.Bounds {
	side := c.FrameWidthMax
	if c.FrameHeightMax > side {
		side = c.FrameHeightMax
	}
	return swf.Bounds{
		MinVersion:   c.VersionMin,
		MaxVersion:   c.VersionMax,
		MaxFileBytes: c.MaxDocumentBytes,
		MaxFrameSize: swf.Twips(side),
	}
}
