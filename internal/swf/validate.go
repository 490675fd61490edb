package swf

import (
	"bytes"
	"fmt"

	"swfdiff/internal/swf/avm1"
	appErr "swfdiff/pkg/errors"
)

// Bounds limits what Validate accepts beyond structural well-formedness.
// Zero fields are unchecked.
type Bounds struct {
	MinVersion   uint8
	MaxVersion   uint8
	MaxFileBytes int
	MaxFrameSize int32 // per axis, in twips
}

// Validate decodes data and checks it is a well-formed document within b.
// Errors carry the InvalidSWF code.
func Validate(data []byte, b Bounds) error {
	if b.MaxFileBytes > 0 && len(data) > b.MaxFileBytes {
		return appErr.Newf(appErr.InvalidSWF, "file is %d bytes, limit %d", len(data), b.MaxFileBytes)
	}
	doc, err := Decode(data)
	if err != nil {
		return appErr.Wrapf(err, appErr.InvalidSWF, "decode swf")
	}
	if err := ValidateDocument(doc, b); err != nil {
		return err
	}
	return nil
}

// ValidateDocument checks content-level rules of an already decoded document.
func ValidateDocument(doc *Document, b Bounds) error {
	h := doc.Header
	if b.MinVersion > 0 && h.Version < b.MinVersion {
		return appErr.Newf(appErr.InvalidSWF, "version %d below minimum %d", h.Version, b.MinVersion)
	}
	if b.MaxVersion > 0 && h.Version > b.MaxVersion {
		return appErr.Newf(appErr.InvalidSWF, "version %d above maximum %d", h.Version, b.MaxVersion)
	}
	r := h.FrameSize
	if r.XMin > r.XMax || r.YMin > r.YMax {
		return appErr.Newf(appErr.InvalidSWF, "frame size rect is inverted: %+v", r)
	}
	if b.MaxFrameSize > 0 && (r.XMax-r.XMin > b.MaxFrameSize || r.YMax-r.YMin > b.MaxFrameSize) {
		return appErr.Newf(appErr.InvalidSWF, "frame size %+v exceeds %d twips", r, b.MaxFrameSize)
	}
	if len(doc.Tags) == 0 || doc.Tags[len(doc.Tags)-1].Code != TagEnd {
		return appErr.New(appErr.InvalidSWF).WithMessage("document does not end with End tag")
	}
	if frames := doc.CountTags(TagShowFrame); frames != int(h.FrameCount) {
		return appErr.Newf(appErr.InvalidSWF, "header declares %d frames, document shows %d", h.FrameCount, frames)
	}
	for i, t := range doc.Tags {
		if err := validateTag(t, i == len(doc.Tags)-1); err != nil {
			return appErr.Wrapf(err, appErr.InvalidSWF, "tag %d (%s)", i, t.Code)
		}
	}
	return nil
}

func validateTag(t Tag, last bool) error {
	switch t.Code {
	case TagEnd:
		if !last {
			return fmt.Errorf("End tag before end of document")
		}
		if len(t.Payload) != 0 {
			return fmt.Errorf("End tag carries %d bytes", len(t.Payload))
		}
	case TagShowFrame:
		if len(t.Payload) != 0 {
			return fmt.Errorf("ShowFrame carries %d bytes", len(t.Payload))
		}
	case TagSetBackgroundColor:
		if len(t.Payload) != 3 {
			return fmt.Errorf("RGB payload is %d bytes", len(t.Payload))
		}
	case TagScriptLimits, TagFileAttributes:
		if len(t.Payload) != 4 {
			return fmt.Errorf("payload is %d bytes, want 4", len(t.Payload))
		}
	case TagDoAction:
		if err := avm1.Verify(t.Payload); err != nil {
			return err
		}
	case TagFrameLabel, TagMetadata, TagEnableDebugger:
		return checkString(t.Payload)
	case TagEnableDebugger2:
		if len(t.Payload) < 2 {
			return fmt.Errorf("missing reserved field")
		}
		return checkString(t.Payload[2:])
	case TagProtect:
		if len(t.Payload) == 0 {
			return nil
		}
		if len(t.Payload) < 2 {
			return fmt.Errorf("missing reserved field")
		}
		return checkString(t.Payload[2:])
	}
	return nil
}

// checkString requires exactly one NUL, at the end.
func checkString(p []byte) error {
	if len(p) == 0 || p[len(p)-1] != 0 {
		return fmt.Errorf("string not NUL terminated")
	}
	if bytes.IndexByte(p, 0) != len(p)-1 {
		return fmt.Errorf("string contains embedded NUL")
	}
	return nil
}

// StringPayload encodes s as a NUL-terminated SWF STRING.
func StringPayload(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	out = append(out, s...)
	return append(out, 0)
}
