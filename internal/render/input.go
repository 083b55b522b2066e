package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/starford/sitepanel/internal/content"
)

// ImageStatus is the state of an image field.
type ImageStatus int

const (
	ImageEmpty ImageStatus = iota
	ImageUploading
	ImagePopulated
)

func (s ImageStatus) String() string {
	switch s {
	case ImageUploading:
		return "uploading"
	case ImagePopulated:
		return "populated"
	default:
		return "empty"
	}
}

// ImageState classifies an image field value. Only a non-empty string other
// than the upload sentinel counts as a stored URL.
func ImageState(v content.Node) ImageStatus {
	s, ok := v.(*content.Scalar)
	if !ok {
		return ImageEmpty
	}
	str, ok := s.Str()
	switch {
	case !ok || str == "":
		return ImageEmpty
	case str == content.UploadingSentinel:
		return ImageUploading
	default:
		return ImagePopulated
	}
}

// CoerceNumber converts raw control input to a number. Blank, unparseable
// and infinite input becomes 0.
func CoerceNumber(raw string) *content.Scalar {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return content.Number(0)
	}
	return content.Number(f)
}

// CoerceBool converts checkbox input to a boolean.
func CoerceBool(raw string) *content.Scalar {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "1", "yes":
		return content.Bool(true)
	}
	return content.Bool(false)
}

// CoerceInput turns the raw string submitted for a field of kind k into the
// value stored in the document.
func CoerceInput(k content.Kind, raw string) content.Node {
	switch k {
	case content.KindNumber:
		return CoerceNumber(raw)
	case content.KindBoolean:
		return CoerceBool(raw)
	}
	return content.String(raw)
}

func display(v content.Node) string {
	if s, ok := v.(*content.Scalar); ok {
		return s.Display()
	}
	return ""
}

func input(f *content.Field) Input {
	v := f.Value()
	switch f.Kind() {
	case content.KindNumber:
		return Input{Control: ControlNumber, Value: display(v)}
	case content.KindBoolean:
		in := Input{Control: ControlCheckbox}
		if s, ok := v.(*content.Scalar); ok {
			in.Checked, _ = s.BoolValue()
		}
		return in
	case content.KindURL:
		return Input{Control: ControlURL, Value: display(v), Placeholder: "https://..."}
	case content.KindImage:
		in := Input{Control: ControlImage, Image: ImageState(v)}
		if in.Image == ImagePopulated {
			in.Value = display(v)
		}
		return in
	case content.KindTextEditor:
		return Input{Control: ControlTextarea, Value: display(v), Rows: 5, Placeholder: placeholder(f)}
	default:
		return Input{Control: ControlText, Value: display(v), Placeholder: placeholder(f)}
	}
}

func placeholder(f *content.Field) string {
	if f.Title() == "" {
		return ""
	}
	return "Enter " + strings.ToLower(f.Title()) + "..."
}
