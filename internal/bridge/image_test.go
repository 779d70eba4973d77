package bridge

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name       string
		raw        string
		wantPrefix string
		wantErr    bool
	}{
		{"plain base64", payload, "", false},
		{"data url", "data:image/png;base64," + payload, "image/png", false},
		{"data url with params", "data:Image/JPEG; charset=binary;base64," + payload, "image/jpeg", false},
		{"unpadded", base64.RawStdEncoding.EncodeToString(pngBytes), "", false},
		{"surrounding whitespace", "  " + payload + "\n", "", false},
		{"data url not base64", "data:image/png," + payload, "", true},
		{"data url without comma", "data:image/png;base64", "", true},
		{"garbage", "%%%", "", true},
		{"empty payload", "data:image/png;base64,", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, prefix, err := decodeImage(tt.raw)
			if tt.wantErr {
				assert.True(t, IsValidation(err), "expected validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pngBytes, data)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestResolveMIME(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		prefix   string
		data     []byte
		want     string
		wantErr  bool
	}{
		{"explicit wins", "image/webp", "image/png", pngBytes, "image/webp", false},
		{"explicit normalized", " IMAGE/JPEG; q=1 ", "", jpegBytes, "image/jpeg", false},
		{"prefix second", "", "image/png", jpegBytes, "image/png", false},
		{"sniffed png", "", "", pngBytes, "image/png", false},
		{"sniffed jpeg", "", "", jpegBytes, "image/jpeg", false},
		{"explicit non image", "application/pdf", "", pngBytes, "", true},
		{"unknown bytes", "", "", []byte("hello world"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveMIME(tt.explicit, tt.prefix, tt.data)
			if tt.wantErr {
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageFilename(t *testing.T) {
	assert.Equal(t, "image.png", imageFilename("image/png"))
	assert.Equal(t, "image.jpg", imageFilename("image/jpeg"))
	assert.Equal(t, "image", imageFilename("image/x-made-up"))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation failed: prompt: is too long", (&ValidationError{Field: "prompt", Message: "is too long"}).Error())
	assert.Equal(t, "validation failed: bad", (&ValidationError{Message: "bad"}).Error())
}
