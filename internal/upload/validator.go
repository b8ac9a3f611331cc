package upload

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/storage"
)

// allowedMIMETypes maps each supported logical type to the declared MIME
// strings accepted at ingress. Declared type and extension are
// attacker-controlled; passing phase 1 only earns a file a spot on disk,
// never trust.
var allowedMIMETypes = map[string][]string{
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"png":  {"image/png"},
	"jpg":  {"image/jpeg", "image/jpg"},
	"gif":  {"image/gif"},
}

// signature pairs a magic-byte prefix with the canonical MIME it proves.
// Checked directly against leading bytes instead of delegating to a
// content-type detection library, so the trust decision stays auditable.
type signature struct {
	prefix []byte
	mime   string
}

var signatures = []signature{
	{[]byte{0x25, 0x50, 0x44, 0x46}, "application/pdf"},
	{[]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/msword"},
	{[]byte{0x50, 0x4B, 0x03, 0x04}, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	{[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x47, 0x49, 0x46, 0x38, 0x37, 0x61}, "image/gif"}, // GIF87a
	{[]byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "image/gif"}, // GIF89a
}

// sniffLen is the longest signature prefix we need to read.
const sniffLen = 8

// IncomingFile is one file as received at the upload boundary.
type IncomingFile struct {
	OriginalName string
	DeclaredMIME string
	Content      []byte
}

// StoredFile is a file persisted to the scratch location, still keyed by the
// original name for reporting.
type StoredFile struct {
	OriginalName string
	DeclaredMIME string
	Path         string
	Size         int64
}

// BatchResult partitions a batch into the files kept and the original names
// of the files rejected, both in input order.
type BatchResult struct {
	Valid   []StoredFile
	Invalid []string
}

// Validator runs the two-phase upload trust pipeline.
type Validator struct {
	files  storage.FileStorage
	logger *zap.Logger
}

// NewValidator creates a Validator storing files through files.
func NewValidator(files storage.FileStorage, logger *zap.Logger) *Validator {
	return &Validator{
		files:  files,
		logger: logger,
	}
}

// DeclaredMIMEAllowed reports whether mime appears in the flattened
// allow-list.
func DeclaredMIMEAllowed(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, accepted := range allowedMIMETypes {
		for _, m := range accepted {
			if m == mime {
				return true
			}
		}
	}
	return false
}

// SniffMIME matches the leading bytes against the known signatures and
// returns the canonical MIME. ok is false when no signature matches;
// unrecognized content is never assumed valid.
func SniffMIME(prefix []byte) (string, bool) {
	for _, sig := range signatures {
		if bytes.HasPrefix(prefix, sig.prefix) {
			return sig.mime, true
		}
	}
	return "", false
}

// logicalTypeFor resolves a declared MIME to its logical type key.
func logicalTypeFor(declared string) (string, bool) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	for logical, accepted := range allowedMIMETypes {
		for _, m := range accepted {
			if m == declared {
				return logical, true
			}
		}
	}
	return "", false
}

// contentMatchesDeclared reports whether the sniffed canonical MIME is
// acceptable for the declared logical type. A PNG-declared file carrying
// JPEG bytes fails here even though both types are individually allowed.
func contentMatchesDeclared(declared, sniffed string) bool {
	logical, ok := logicalTypeFor(declared)
	if !ok {
		return false
	}
	for _, m := range allowedMIMETypes[logical] {
		if m == sniffed {
			return true
		}
	}
	return false
}

// Store runs phase 1 for a single file: rejects a declared MIME outside the
// allow-list, otherwise persists the content under the request's
// subdirectory with a random 16-character name. The attacker-controlled
// original filename never reaches the storage path; only its extension is
// kept.
func (v *Validator) Store(requestCode string, f IncomingFile) (StoredFile, error) {
	if !DeclaredMIMEAllowed(f.DeclaredMIME) {
		return StoredFile{}, apperr.Validationf("file type %q is not allowed", f.DeclaredMIME)
	}

	name := randomToken() + strings.ToLower(filepath.Ext(f.OriginalName))
	path, err := v.files.SaveUpload(requestCode, name, f.Content)
	if err != nil {
		return StoredFile{}, err
	}

	return StoredFile{
		OriginalName: f.OriginalName,
		DeclaredMIME: f.DeclaredMIME,
		Path:         path,
		Size:         int64(len(f.Content)),
	}, nil
}

// Validate runs phase 2 over stored files: sniffs each file's leading bytes
// and partitions the batch into valid and invalid lists, preserving input
// order. Invalid files are deleted from storage best-effort; a cleanup
// failure never changes the verdict.
func (v *Validator) Validate(files []StoredFile) BatchResult {
	result := BatchResult{}

	for _, f := range files {
		prefix, err := v.files.ReadPrefix(f.Path, sniffLen)
		if err != nil {
			v.logger.Warn("Failed to read upload for sniffing, treating as invalid",
				zap.String("path", f.Path),
				zap.Error(err))
			v.discard(f)
			result.Invalid = append(result.Invalid, f.OriginalName)
			continue
		}

		mime, ok := SniffMIME(prefix)
		if !ok || !contentMatchesDeclared(f.DeclaredMIME, mime) {
			v.logger.Info("Upload rejected by content sniffing",
				zap.String("original_name", f.OriginalName),
				zap.String("declared_mime", f.DeclaredMIME),
				zap.String("sniffed_mime", mime))
			v.discard(f)
			result.Invalid = append(result.Invalid, f.OriginalName)
			continue
		}

		result.Valid = append(result.Valid, f)
	}

	return result
}

// Delete removes a stored upload. Deleting a path that does not exist is a
// no-op.
func (v *Validator) Delete(path string) error {
	return v.files.Remove(path)
}

func (v *Validator) discard(f StoredFile) {
	if err := v.files.Remove(f.Path); err != nil {
		v.logger.Warn("Failed to delete invalid upload",
			zap.String("path", f.Path),
			zap.Error(err))
	}
}

// randomToken returns a 16-character hex token for storage filenames.
func randomToken() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic("upload: reading random source: " + err.Error())
	}
	return hex.EncodeToString(b)
}
