// Package generator produces random, structurally valid SWF documents whose
// scripts report their results through trace.
package generator

import (
	"encoding/binary"
	"math/rand/v2"
	"strconv"

	"swfdiff/internal/swf"
	"swfdiff/internal/swf/avm1"
	appErr "swfdiff/pkg/errors"
)

// debuggerPassword is the MD5-crypt hash Flash authoring tools write for an empty password.
const debuggerPassword = "$1$5C$2dKTbwjNlJlNSvp9qvD651"

// Sample is one generated document.
type Sample struct {
	Seed     Seed
	Attempts int // 1 when the first attempt validated
	Document *swf.Document
	Bytes    []byte
}

// Generate builds the document for seed. It is a pure function of (seed, cfg).
// Attempts that fail validation are retried with derived sub-seeds and a
// shrinking case count; after cfg.MaxRetries retries GenerationExhausted is
// returned.
func Generate(seed Seed, cfg Config) (*Sample, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bounds := cfg.bounds()
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		sub := seed
		if attempt > 0 {
			sub = DeriveSeed(seed, uint64(attempt))
		}
		doc, err := build(sub, &cfg, attempt)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := doc.Encode()
		if err != nil {
			lastErr = err
			continue
		}
		if err := swf.Validate(data, bounds); err != nil {
			lastErr = err
			continue
		}
		return &Sample{Seed: seed, Attempts: attempt + 1, Document: doc, Bytes: data}, nil
	}
	return nil, appErr.Wrapf(lastErr, appErr.GenerationExhausted,
		"seed %d: no valid document after %d attempts", seed, cfg.MaxRetries+1).
		WithDetail("seed", uint64(seed))
}

func newRand(seed Seed) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, splitmix64(s)))
}

func build(seed Seed, cfg *Config, attempt int) (*swf.Document, error) {
	rng := newRand(seed)
	doc := &swf.Document{Header: buildHeader(rng, cfg)}

	cases := cfg.TestsPerCase >> attempt
	if cases < 1 {
		cases = 1
	}

	scripts, err := buildScripts(rng, cfg, cases)
	if err != nil {
		return nil, err
	}
	if cfg.EdgeCases && rng.IntN(4) == 0 {
		// An empty action list ahead of the real scripts.
		scripts = append([][]byte{{byte(avm1.ActionEnd)}}, scripts...)
	}

	budget := cfg.MaxTags - len(scripts) - 1 // one ShowFrame
	if budget < 0 {
		scripts = mergeScripts(rng, cfg, cases)
		budget = cfg.MaxTags - 2
	}

	var tags []swf.Tag
	for _, t := range optionalTags(rng, cfg, doc.Header.Version) {
		if len(tags) >= budget {
			break
		}
		tags = append(tags, t)
	}
	for _, s := range scripts {
		tags = append(tags, swf.Tag{Code: swf.TagDoAction, Payload: s, LongHeader: cfg.EdgeCases && rng.IntN(8) == 0})
	}
	tags = append(tags, swf.Tag{Code: swf.TagShowFrame}, swf.Tag{Code: swf.TagEnd})
	doc.Tags = tags
	doc.Header.FrameCount = 1
	return doc, nil
}

func buildHeader(rng *rand.Rand, cfg *Config) swf.Header {
	version := cfg.VersionMin + uint8(rng.IntN(int(cfg.VersionMax-cfg.VersionMin)+1))
	rate := cfg.FrameRateMin + rng.Float64()*(cfg.FrameRateMax-cfg.FrameRateMin)
	width := cfg.FrameWidthMin + rng.IntN(cfg.FrameWidthMax-cfg.FrameWidthMin+1)
	height := cfg.FrameHeightMin + rng.IntN(cfg.FrameHeightMax-cfg.FrameHeightMin+1)

	h := swf.Header{
		Version:   version,
		FrameSize: swf.Rect{XMax: swf.Twips(width), YMax: swf.Twips(height)},
		FrameRate: swf.Fixed8FromFloat(rate),
	}
	if h.FrameRate == 0 {
		h.FrameRate = 1
	}
	if cfg.Compress && version >= 6 {
		h.Compression = swf.CompressionZlib
	}
	return h
}

// buildScripts spreads the cases over one or more DoAction tags. The last tag
// carries the completion epilogue.
func buildScripts(rng *rand.Rand, cfg *Config, cases int) ([][]byte, error) {
	b := newScriptBuilder(rng, cfg)
	tagCount := 1
	if cases > 1 {
		tagCount = 1 + rng.IntN(cases)
	}
	perTag := make([]int, tagCount)
	for i := 0; i < cases; i++ {
		perTag[i%tagCount]++
	}
	out := make([][]byte, 0, tagCount)
	for i, n := range perTag {
		w := avm1.NewWriter()
		for j := 0; j < n; j++ {
			b.writeCase(w)
		}
		if i == tagCount-1 {
			b.epilogue(w)
		}
		if err := w.Err(); err != nil {
			return nil, appErr.Wrapf(err, appErr.EncodeFailed, "encode script %d", i)
		}
		out = append(out, w.Bytes())
	}
	return out, nil
}

// mergeScripts rebuilds the cases into a single DoAction when the tag budget
// is too small for the split layout.
func mergeScripts(rng *rand.Rand, cfg *Config, cases int) [][]byte {
	b := newScriptBuilder(rng, cfg)
	w := avm1.NewWriter()
	for i := 0; i < cases; i++ {
		b.writeCase(w)
	}
	b.epilogue(w)
	return [][]byte{w.Bytes()}
}

func optionalTags(rng *rand.Rand, cfg *Config, version uint8) []swf.Tag {
	var tags []swf.Tag
	if cfg.allowed(swf.TagSetBackgroundColor) && rng.IntN(2) == 0 {
		tags = append(tags, swf.Tag{Code: swf.TagSetBackgroundColor, Payload: []byte{
			byte(rng.IntN(256)), byte(rng.IntN(256)), byte(rng.IntN(256)),
		}})
	}
	if cfg.allowed(swf.TagEnableDebugger2) {
		if version >= 6 {
			payload := append([]byte{0, 0}, swf.StringPayload(debuggerPassword)...)
			tags = append(tags, swf.Tag{Code: swf.TagEnableDebugger2, Payload: payload})
		} else {
			tags = append(tags, swf.Tag{Code: swf.TagEnableDebugger, Payload: swf.StringPayload(debuggerPassword)})
		}
	}
	if cfg.allowed(swf.TagScriptLimits) && version >= 7 && rng.IntN(4) == 0 {
		recursion, timeout := uint16(256), uint16(15+rng.IntN(46))
		if cfg.EdgeCases && rng.IntN(2) == 0 {
			recursion, timeout = 0, 0
		}
		payload := binary.LittleEndian.AppendUint16(nil, recursion)
		payload = binary.LittleEndian.AppendUint16(payload, timeout)
		tags = append(tags, swf.Tag{Code: swf.TagScriptLimits, Payload: payload})
	}
	if cfg.allowed(swf.TagProtect) && rng.IntN(5) == 0 {
		tags = append(tags, swf.Tag{Code: swf.TagProtect})
	}
	if cfg.allowed(swf.TagMetadata) && rng.IntN(4) == 0 {
		meta := `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"/>`
		if cfg.EdgeCases && rng.IntN(2) == 0 {
			meta = ""
		}
		tags = append(tags, swf.Tag{Code: swf.TagMetadata, Payload: swf.StringPayload(meta)})
	}
	if cfg.allowed(swf.TagFrameLabel) && rng.IntN(4) == 0 {
		label := "frame" + strconv.Itoa(rng.IntN(1000))
		tags = append(tags, swf.Tag{Code: swf.TagFrameLabel, Payload: swf.StringPayload(label)})
	}
	return tags
}
