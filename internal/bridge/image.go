package bridge

import (
	"encoding/base64"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// decodeImage decodes a base64 image, optionally wrapped in a
// "data:<mime>;base64," URL. It returns the bytes and the MIME type
// declared by the data URL prefix, if any.
func decodeImage(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)

	var prefixMIME string
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 {
			return nil, "", invalid("image", "data URL has no payload")
		}
		header := raw[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", invalid("image", "data URL must be base64 encoded")
		}
		prefixMIME = normalizeMIME(strings.TrimSuffix(header, ";base64"))
		raw = raw[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, "", invalid("image", "image is not valid base64")
		}
	}
	if len(data) == 0 {
		return nil, "", invalid("image", "image is empty")
	}

	return data, prefixMIME, nil
}

// resolveMIME picks the image content type: the explicit value first, then
// the data URL prefix, then content sniffing. The result must be image/*.
func resolveMIME(explicit, prefix string, data []byte) (string, error) {
	resolved := normalizeMIME(explicit)
	if resolved == "" {
		resolved = prefix
	}
	if resolved == "" {
		resolved = normalizeMIME(mimetype.Detect(data).String())
	}
	if !strings.HasPrefix(resolved, "image/") {
		return "", invalid("mimeType", "content type "+quoteOrUnknown(resolved)+" is not an image")
	}
	return resolved, nil
}

// normalizeMIME lower-cases a media type and drops its parameters.
func normalizeMIME(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(value); err == nil {
		return mediaType
	}
	return strings.ToLower(value)
}

// imageFilename derives an upload filename such as "image.png" from a MIME type.
func imageFilename(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return "image" + m.Extension()
	}
	return "image"
}

func quoteOrUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return `"` + s + `"`
}
