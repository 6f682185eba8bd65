package upload

// extensionTypes maps a lowercase file extension to the declared media types
// accepted for it. A declared type outside the set for its extension is a
// spoofing attempt and is rejected.
var extensionTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".webp": {"image/webp"},
	".txt":  {"text/plain"},
	".csv":  {"text/csv", "text/plain"},
}

// signature is a known byte pattern at a fixed offset from the start of the
// file. A type may carry more than one signature; any match passes.
type signature struct {
	offset int
	bytes  []byte
}

// typeSignatures holds the content signatures per declared media type.
// WebP is a RIFF container: the outer RIFF marker and the inner WEBP marker
// at offset 8 must both match.
var typeSignatures = map[string][]signature{
	"application/pdf": {
		{offset: 0, bytes: []byte{0x25, 0x50, 0x44, 0x46}}, // %PDF
	},
	"image/jpeg": {
		{offset: 0, bytes: []byte{0xFF, 0xD8, 0xFF}},
	},
	"image/png": {
		{offset: 0, bytes: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	},
	"image/webp": {
		{offset: 0, bytes: []byte{0x52, 0x49, 0x46, 0x46}}, // RIFF
		{offset: 8, bytes: []byte{0x57, 0x45, 0x42, 0x50}}, // WEBP
	},
}

// signatureProbeLen is how many leading bytes the signature check inspects.
const signatureProbeLen = 20

// matchesSignatures reports whether head satisfies every signature registered
// for the media type. Returns (matched, known); known is false when no
// signatures exist for the type.
func matchesSignatures(mediaType string, head []byte) (bool, bool) {
	sigs, ok := typeSignatures[mediaType]
	if !ok {
		return false, false
	}
	for _, sig := range sigs {
		end := sig.offset + len(sig.bytes)
		if len(head) < end {
			return false, true
		}
		for i, b := range sig.bytes {
			if head[sig.offset+i] != b {
				return false, true
			}
		}
	}
	return true, true
}
