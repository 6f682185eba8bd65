package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxBaseLen caps the sanitized base name, keeping room for the uniqueness
// suffix and extension within common filesystem limits.
const maxBaseLen = 100

// Fingerprint is the validated identity record of an accepted upload.
// Storage and upstream layers key off StoredName and SHA256; the original
// name is retained only for audit and display.
type Fingerprint struct {
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Extension    string `json:"extension"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256"`
}

// now is swapped in tests to pin the uniqueness suffix.
var now = time.Now

var (
	pathSeparators = strings.NewReplacer("/", "", "\\", "")
	repeatedDots   = regexp.MustCompile(`\.{2,}`)
)

// Fingerprint derives the immutable record for a file that already passed
// validation. It fails loudly when the content is missing rather than
// emitting a placeholder digest: a fingerprint without a real hash must
// never reach storage.
func (v *Validator) Fingerprint(f *File) (*Fingerprint, error) {
	if f == nil || len(f.Content) == 0 {
		return nil, errors.New("upload: cannot fingerprint empty file")
	}

	sum := sha256.Sum256(f.Content)
	ext := extensionOf(f.Name)

	return &Fingerprint{
		StoredName:   sanitizeName(f.Name, ext),
		OriginalName: f.Name,
		ContentType:  normalizeMediaType(f.ContentType),
		Extension:    ext,
		Size:         int64(len(f.Content)),
		SHA256:       hex.EncodeToString(sum[:]),
	}, nil
}

// sanitizeName derives a storage-safe name: path separators stripped, unsafe
// characters replaced, repeated dots collapsed, base length capped, and a
// wall-clock suffix appended so identical names submitted at different
// instants never collide.
func sanitizeName(name, ext string) string {
	base := pathSeparators.Replace(name)
	base = strings.TrimSuffix(base, ext)
	base = unsafeChars.ReplaceAllString(base, "_")
	base = repeatedDots.ReplaceAllString(base, ".")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "file"
	}
	if len(base) > maxBaseLen {
		base = base[:maxBaseLen]
	}

	suffix := strconv.FormatInt(now().UnixNano(), 36)
	return base + "_" + suffix + ext
}
