// Package swf models uncompressed and zlib-compressed SWF documents and
// converts them to and from their binary form.
package swf

import "math"

// TagCode identifies a SWF tag type.
type TagCode uint16

const (
	TagEnd                TagCode = 0
	TagShowFrame          TagCode = 1
	TagSetBackgroundColor TagCode = 9
	TagDoAction           TagCode = 12
	TagProtect            TagCode = 24
	TagFrameLabel         TagCode = 43
	TagEnableDebugger     TagCode = 58
	TagEnableDebugger2    TagCode = 64
	TagScriptLimits       TagCode = 65
	TagFileAttributes     TagCode = 69
	TagMetadata           TagCode = 77
)

var tagNames = map[TagCode]string{
	TagEnd:                "End",
	TagShowFrame:          "ShowFrame",
	TagSetBackgroundColor: "SetBackgroundColor",
	TagDoAction:           "DoAction",
	TagProtect:            "Protect",
	TagFrameLabel:         "FrameLabel",
	TagEnableDebugger:     "EnableDebugger",
	TagEnableDebugger2:    "EnableDebugger2",
	TagScriptLimits:       "ScriptLimits",
	TagFileAttributes:     "FileAttributes",
	TagMetadata:           "Metadata",
}

func (c TagCode) String() string {
	if name, ok := tagNames[c]; ok {
		return name
	}
	return "Unknown"
}

// TagCodeByName resolves a tag name as used in configuration files.
func TagCodeByName(name string) (TagCode, bool) {
	for code, n := range tagNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// Compression selects the container signature.
type Compression uint8

const (
	CompressionNone Compression = iota // FWS
	CompressionZlib                    // CWS
)

// Rect is a SWF RECT in twips (1/20 pixel).
type Rect struct {
	XMin, XMax, YMin, YMax int32
}

// Twips converts pixels to twips.
func Twips(px int) int32 {
	return int32(px * 20)
}

// Fixed8 is an unsigned 8.8 fixed point number.
type Fixed8 uint16

// Fixed8FromFloat converts a float, clamping to the representable range.
func Fixed8FromFloat(f float64) Fixed8 {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 255.99609375 {
		return math.MaxUint16
	}
	return Fixed8(math.Round(f * 256))
}

func (f Fixed8) Float() float64 {
	return float64(f) / 256
}

// Header is the fixed SWF file header.
type Header struct {
	Version     uint8
	Compression Compression
	FrameSize   Rect
	FrameRate   Fixed8
	FrameCount  uint16
}

// Tag is one tag record. LongHeader forces the long RECORDHEADER form even
// for payloads shorter than 63 bytes.
type Tag struct {
	Code       TagCode
	Payload    []byte
	LongHeader bool
}

// Document is an ordered sequence of tags under a header.
type Document struct {
	Header Header
	Tags   []Tag
}

// CountTags returns how many tags with the given code the document carries.
func (d *Document) CountTags(code TagCode) int {
	n := 0
	for _, t := range d.Tags {
		if t.Code == code {
			n++
		}
	}
	return n
}

// DoActions returns the payloads of every DoAction tag in document order.
func (d *Document) DoActions() [][]byte {
	var out [][]byte
	for _, t := range d.Tags {
		if t.Code == TagDoAction {
			out = append(out, t.Payload)
		}
	}
	return out
}
