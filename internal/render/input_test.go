package render

import (
	"testing"

	"github.com/starford/sitepanel/internal/content"
)

func TestCoerceNumber(t *testing.T) {
	cases := map[string]string{
		"42":    "42",
		" 3.5 ": "3.5",
		"-0.25": "-0.25",
		"":      "0",
		"abc":   "0",
		"1e400": "0",
		"Inf":   "0",
		"1e3":   "1000",
	}
	for in, want := range cases {
		got := CoerceNumber(in)
		if got.Type() != content.ScalarNumber || got.Display() != want {
			t.Errorf("CoerceNumber(%q) = %q, want %q", in, got.Display(), want)
		}
	}
}

func TestCoerceInput(t *testing.T) {
	if v, _ := CoerceInput(content.KindBoolean, "on").(*content.Scalar).BoolValue(); !v {
		t.Error("checkbox on should be true")
	}
	if v, _ := CoerceInput(content.KindBoolean, "").(*content.Scalar).BoolValue(); v {
		t.Error("absent checkbox should be false")
	}
	s, ok := CoerceInput(content.KindText, " keep spaces ").(*content.Scalar).Str()
	if !ok || s != " keep spaces " {
		t.Errorf("text coerced to %q", s)
	}
	if CoerceInput(content.KindNumber, "7").(*content.Scalar).Type() != content.ScalarNumber {
		t.Error("number kind should coerce to a number")
	}
}

func TestImageState(t *testing.T) {
	cases := []struct {
		v    content.Node
		want ImageStatus
	}{
		{content.String(""), ImageEmpty},
		{content.Null(), ImageEmpty},
		{nil, ImageEmpty},
		{content.Number(1), ImageEmpty},
		{content.String(content.UploadingSentinel), ImageUploading},
		{content.String("https://cdn/x.png"), ImagePopulated},
	}
	for _, tc := range cases {
		if got := ImageState(tc.v); got != tc.want {
			t.Errorf("ImageState(%v) = %s, want %s", tc.v, got, tc.want)
		}
	}
}
