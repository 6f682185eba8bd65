// Package upload implements the content validation pipeline and
// fingerprinting for browser-submitted files. Validation is layered: no
// single check is trusted on its own, and the cheap structural checks run
// before anything that touches file content.
package upload

import (
	"regexp"
	"strings"
)

// Rejection reasons. Each rejection carries exactly one of these fixed codes.
const (
	ReasonNoFile           = "no_file_provided"
	ReasonFileTooLarge     = "file_too_large"
	ReasonFilenameTooLong  = "filename_too_long"
	ReasonInvalidFilename  = "invalid_filename"
	ReasonDoubleExtension  = "double_extension"
	ReasonExtensionTooLong = "extension_too_long"
	ReasonUnsupportedType  = "unsupported_file_type"
	ReasonSignatureInvalid = "signature_mismatch"
	ReasonDangerousContent = "dangerous_content"
)

const (
	maxFilenameLen  = 255
	maxExtensionLen = 10
	contentScanLen  = 10 * 1024
)

// File is an uploaded file during the lifetime of its request. The declared
// media type is client-asserted and not trusted until validated.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}

// Verdict is the outcome of a validation run. Warnings are advisory and only
// ever attached to an accepted verdict; Reason is set iff Accepted is false.
type Verdict struct {
	Accepted bool
	Reason   string
	Warnings []string
}

// Validator runs the check pipeline against configured limits.
type Validator struct {
	maxSize int64
}

// NewValidator creates a validator enforcing the given size ceiling in bytes.
func NewValidator(maxSize int64) *Validator {
	return &Validator{maxSize: maxSize}
}

// stage is one check in the pipeline. A non-empty reason rejects the file
// and stops the run; warnings accumulate across accepting stages.
type stage func(v *Validator, f *File) (reason string, warnings []string)

// stages run in order, cheapest first, short-circuiting on rejection.
var stages = []stage{
	checkShape,
	checkFilename,
	checkDeclaredType,
	checkSignature,
	checkDangerousContent,
}

// Validate runs the full pipeline and returns a fresh, immutable verdict.
func (v *Validator) Validate(f *File) *Verdict {
	var warnings []string
	for _, s := range stages {
		reason, w := s(v, f)
		if reason != "" {
			return &Verdict{Accepted: false, Reason: reason}
		}
		warnings = append(warnings, w...)
	}
	return &Verdict{Accepted: true, Warnings: warnings}
}

// checkShape enforces the basic invariants: the file exists, is non-empty,
// fits the size ceiling, and has a sane filename.
func checkShape(v *Validator, f *File) (string, []string) {
	if f == nil || len(f.Content) == 0 {
		return ReasonNoFile, nil
	}
	if v.maxSize > 0 && int64(len(f.Content)) > v.maxSize {
		return ReasonFileTooLarge, nil
	}
	if len(f.Name) > maxFilenameLen {
		return ReasonFilenameTooLong, nil
	}
	if strings.ContainsRune(f.Name, 0) {
		return ReasonInvalidFilename, nil
	}
	return "", nil
}

var (
	// doubleExtension matches names like invoice.pdf.exe: two consecutive
	// short alphabetic suffixes.
	doubleExtension = regexp.MustCompile(`\.[a-zA-Z]{2,4}\.[a-zA-Z]{2,4}$`)
	unsafeChars     = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// checkFilename rejects structurally suspicious names and flags (without
// rejecting) names that are merely awkward for common filesystems.
func checkFilename(_ *Validator, f *File) (string, []string) {
	if doubleExtension.MatchString(f.Name) {
		return ReasonDoubleExtension, nil
	}
	if ext := extensionOf(f.Name); len(ext) > maxExtensionLen {
		return ReasonExtensionTooLong, nil
	}

	var warnings []string
	if unsafeChars.MatchString(f.Name) {
		warnings = append(warnings, "filename contains characters unsafe for some filesystems")
	}
	if strings.HasPrefix(f.Name, ".") {
		warnings = append(warnings, "filename uses the hidden-file convention")
	}
	return "", warnings
}

// checkDeclaredType verifies the declared media type against the fixed
// extension table. A mismatch means the client asserted a benign type for a
// differently-extensioned payload.
func checkDeclaredType(_ *Validator, f *File) (string, []string) {
	allowed, ok := extensionTypes[extensionOf(f.Name)]
	if !ok {
		return ReasonUnsupportedType, nil
	}
	declared := normalizeMediaType(f.ContentType)
	for _, t := range allowed {
		if declared == t {
			return "", nil
		}
	}
	return ReasonUnsupportedType, nil
}

// checkSignature compares the leading bytes against the known signature for
// the declared type. A type with no registered signature is a soft pass with
// a warning rather than a rejection.
func checkSignature(_ *Validator, f *File) (string, []string) {
	head := f.Content
	if len(head) > signatureProbeLen {
		head = head[:signatureProbeLen]
	}

	matched, known := matchesSignatures(normalizeMediaType(f.ContentType), head)
	if !known {
		return "", []string{"no content signature registered for declared type"}
	}
	if !matched {
		return ReasonSignatureInvalid, nil
	}
	return "", nil
}

// dangerousNamePatterns are substrings that never belong in an image
// filename: markup, script URIs, and executable-style extensions smuggled
// into the name.
var dangerousNamePatterns = []string{
	"<script", "javascript:", "vbscript:", "onerror=", "onload=",
	".exe", ".bat", ".cmd", ".scr", ".com", ".pif", ".php", ".jsp",
}

// checkDangerousContent scans image filenames for dangerous patterns and,
// for PDFs, scans the leading content for embedded active-content markers.
func checkDangerousContent(_ *Validator, f *File) (string, []string) {
	declared := normalizeMediaType(f.ContentType)

	if strings.HasPrefix(declared, "image/") {
		lower := strings.ToLower(f.Name)
		for _, pat := range dangerousNamePatterns {
			if strings.Contains(lower, pat) {
				return ReasonDangerousContent, nil
			}
		}
		return "", nil
	}

	if declared == "application/pdf" {
		head := f.Content
		if len(head) > contentScanLen {
			head = head[:contentScanLen]
		}
		if probe := string(head); strings.Contains(probe, "/JavaScript") || strings.Contains(probe, "/OpenAction") {
			return ReasonDangerousContent, nil
		}
	}
	return "", nil
}

// extensionOf returns the lowercase final extension including the dot, or ""
// when the name has none.
func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}

// normalizeMediaType lowercases and strips any parameters from a declared
// content type ("Image/JPEG; charset=x" -> "image/jpeg").
func normalizeMediaType(ct string) string {
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
