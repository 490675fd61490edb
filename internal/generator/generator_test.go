package generator

import (
	"bytes"
	"testing"

	"swfdiff/internal/swf"
	"swfdiff/internal/swf/avm1"
	appErr "swfdiff/pkg/errors"
)

func wideConfig() Config {
	cfg := DefaultConfig()
	cfg.VersionMin, cfg.VersionMax = 6, 43
	cfg.FrameRateMin, cfg.FrameRateMax = 0.5, 120
	cfg.FrameWidthMin, cfg.FrameWidthMax = 0, 2000
	cfg.FrameHeightMin, cfg.FrameHeightMax = 1, 1000
	cfg.Modes = ModeWeights{Opcode: 2, StaticCall: 1, DynamicCall: 1}
	cfg.TestsPerCase = 6
	cfg.EdgeCases = true
	cfg.RandomStrings = true
	cfg.RandomInts = true
	cfg.IntStrings = true
	cfg.NaNDoubles = true
	cfg.MaxDocumentBytes = 256 << 10
	return cfg
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := wideConfig()
	for seed := Seed(0); seed < 20; seed++ {
		a, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		b, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if !bytes.Equal(a.Bytes, b.Bytes) {
			t.Fatalf("seed %d produced different bytes", seed)
		}
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	cfg := wideConfig()
	seen := make(map[string]Seed)
	for seed := Seed(100); seed < 150; seed++ {
		s, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if prev, ok := seen[string(s.Bytes)]; ok {
			t.Fatalf("seeds %d and %d produced identical documents", prev, seed)
		}
		seen[string(s.Bytes)] = seed
	}
}

func TestEveryGeneratedDocumentValidates(t *testing.T) {
	configs := map[string]Config{
		"default": DefaultConfig(),
		"wide":    wideConfig(),
	}
	compressed := wideConfig()
	compressed.Compress = true
	configs["compressed"] = compressed
	low := wideConfig()
	low.VersionMin, low.VersionMax = 1, 5
	configs["pre-v6"] = low

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			for seed := Seed(0); seed < 200; seed++ {
				s, err := Generate(seed, cfg)
				if err != nil {
					t.Fatalf("seed %d: %v", seed, err)
				}
				if err := swf.Validate(s.Bytes, cfg.bounds()); err != nil {
					t.Fatalf("seed %d: %v", seed, err)
				}
				if n := s.Document.CountTags(swf.TagEnd); n != 1 {
					t.Fatalf("seed %d: %d End tags", seed, n)
				}
				if len(s.Document.Tags)-1 > cfg.MaxTags {
					t.Fatalf("seed %d: %d tags exceeds max %d", seed, len(s.Document.Tags)-1, cfg.MaxTags)
				}
			}
		})
	}
}

func TestLastScriptCarriesCompletionSentinel(t *testing.T) {
	cfg := wideConfig()
	for seed := Seed(0); seed < 30; seed++ {
		s, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		scripts := s.Document.DoActions()
		last := scripts[len(scripts)-1]
		insts, err := avm1.Parse(last)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		// ... push sentinel, trace, getURL quit, end
		if len(insts) < 4 || insts[len(insts)-2].Code != avm1.ActionGetURL || insts[len(insts)-3].Code != avm1.ActionTrace {
			t.Fatalf("seed %d: script does not end with the completion epilogue", seed)
		}
		vals, err := avm1.DecodePush(insts[len(insts)-4].Payload)
		if err != nil || len(vals) != 1 || vals[0].Str != cfg.CompletionSentinel {
			t.Fatalf("seed %d: sentinel push = %v (%v)", seed, vals, err)
		}
	}
}

func TestVersionAndFrameRanges(t *testing.T) {
	cfg := wideConfig()
	for seed := Seed(0); seed < 100; seed++ {
		s, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		h := s.Document.Header
		if h.Version < cfg.VersionMin || h.Version > cfg.VersionMax {
			t.Fatalf("seed %d: version %d out of range", seed, h.Version)
		}
		if h.FrameSize.XMax > swf.Twips(cfg.FrameWidthMax) || h.FrameSize.YMax < swf.Twips(cfg.FrameHeightMin) {
			t.Fatalf("seed %d: frame size %+v out of range", seed, h.FrameSize)
		}
		if h.FrameCount != 1 {
			t.Fatalf("seed %d: frame count %d", seed, h.FrameCount)
		}
	}
}

func TestExcludedTagsNeverAppear(t *testing.T) {
	cfg := wideConfig()
	cfg.ExcludeTags = []swf.TagCode{swf.TagEnableDebugger2, swf.TagMetadata}
	for seed := Seed(0); seed < 50; seed++ {
		s, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, tag := range s.Document.Tags {
			if tag.Code == swf.TagEnableDebugger2 || tag.Code == swf.TagEnableDebugger || tag.Code == swf.TagMetadata {
				t.Fatalf("seed %d: excluded tag %s present", seed, tag.Code)
			}
		}
	}
}

func TestMaxTagsForcesSingleScript(t *testing.T) {
	cfg := wideConfig()
	cfg.MaxTags = 2
	for seed := Seed(0); seed < 50; seed++ {
		s, err := Generate(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if got := len(s.Document.Tags) - 1; got != 2 {
			t.Fatalf("seed %d: %d tags, want DoAction+ShowFrame", seed, got)
		}
	}
}

func TestGenerationExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDocumentBytes = 64
	cfg.MaxRetries = 2
	_, err := Generate(7, cfg)
	if err == nil {
		t.Fatal("expected generation to fail under a 64 byte limit")
	}
	if !appErr.Is(err, appErr.GenerationExhausted) {
		t.Fatalf("code = %v, want GenerationExhausted", appErr.GetCode(err))
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted version", func(c *Config) { c.VersionMin, c.VersionMax = 20, 10 }},
		{"no modes", func(c *Config) { c.Modes = ModeWeights{} }},
		{"exclude DoAction", func(c *Config) { c.ExcludeTags = []swf.TagCode{swf.TagDoAction} }},
		{"zero frame rate", func(c *Config) { c.FrameRateMin = 0 }},
		{"tiny tag budget", func(c *Config) { c.MaxTags = 1 }},
		{"empty sentinel", func(c *Config) { c.CompletionSentinel = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !appErr.Is(err, appErr.ConfigInvalid) {
				t.Fatalf("Validate() = %v, want ConfigInvalid", err)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDeriveSeed(t *testing.T) {
	if DeriveSeed(1, 2) == DeriveSeed(1, 3) {
		t.Error("different parts should give different seeds")
	}
	if DeriveSeed(1, 2, 3) == DeriveSeed(1, 3, 2) {
		t.Error("part order should matter")
	}
	if DeriveSeed(5, 9) != DeriveSeed(5, 9) {
		t.Error("derivation must be deterministic")
	}
}
