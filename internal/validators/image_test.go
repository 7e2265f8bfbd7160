package validators

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	jpegHeader := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 64)...)
	gifHeader := append([]byte("GIF89a"), make([]byte, 64)...)

	tests := []struct {
		name     string
		data     []byte
		wantOK   bool
		wantExt  string
		errMatch string
	}{
		{name: "png", data: nil, wantOK: true, wantExt: ".png"}, // filled below
		{name: "jpeg header", data: jpegHeader, wantOK: true, wantExt: ".jpg"},
		{name: "gif header", data: gifHeader, wantOK: true, wantExt: ".gif"},
		{name: "empty", data: []byte{}, errMatch: "empty"},
		{name: "plain text", data: []byte("just some text, definitely not an image"), errMatch: "allowed"},
		{name: "oversized", data: make([]byte, MaxImageSize+1), errMatch: "exceeds"},
	}
	tests[0].data = pngBytes(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateImage(tt.data)
			if result.Valid != tt.wantOK {
				t.Fatalf("Valid = %v, want %v (error: %s)", result.Valid, tt.wantOK, result.Error)
			}
			if tt.wantOK && result.Ext != tt.wantExt {
				t.Errorf("Ext = %q, want %q", result.Ext, tt.wantExt)
			}
			if tt.errMatch != "" && !strings.Contains(result.Error, tt.errMatch) {
				t.Errorf("Error = %q, want match %q", result.Error, tt.errMatch)
			}
		})
	}
}
