// Package identity turns storage keys and free-form names into canonical
// student identities and safe key fragments.
package identity

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StudentIdentity is the canonical (student id, display name) pair derived from a key.
type StudentIdentity struct {
	StudentID   string `json:"er_number"`
	DisplayName string `json:"name"`
}

// String renders the identity the way absence alerts list students.
func (s StudentIdentity) String() string {
	return s.DisplayName + " (" + s.StudentID + ")"
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Parse derives a StudentIdentity from a storage key or filename.
// "batch/101_Jane_Doe.png" -> {101, "Jane Doe"}; a stem without "_" is used for both fields.
func Parse(key string) StudentIdentity {
	// Windows-style separators are treated like "/" so uploaded filenames behave the same.
	base := path.Base(strings.ReplaceAll(key, `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	stem := strings.TrimSuffix(base, path.Ext(base))

	parts := strings.Split(stem, "_")
	if len(parts) >= 2 {
		return StudentIdentity{
			StudentID:   strings.TrimSpace(parts[0]),
			DisplayName: strings.TrimSpace(strings.Join(parts[1:], " ")),
		}
	}

	stem = strings.TrimSpace(stem)
	return StudentIdentity{StudentID: stem, DisplayName: stem}
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SanitizeKeyPart makes a batch or student name safe for an object key:
// trimmed, spaces to underscores, diacritics folded, anything outside [A-Za-z0-9_-] dropped.
func SanitizeKeyPart(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	return unsafeKeyChars.ReplaceAllString(RemoveDiacritics(s), "")
}

// ExternalID is the identifier a reference face is indexed under: "<er>_<sanitized name>".
func ExternalID(studentID, name string) string {
	return strings.TrimSpace(studentID) + "_" + SanitizeKeyPart(name)
}

// ReferenceKey builds the storage key of the n-th (1-based) reference image of a student.
func ReferenceKey(batch, studentID, name string, n int, ext string) string {
	return BatchPrefix(batch) + ExternalID(studentID, name) + "_" + strconv.Itoa(n) + strings.ToLower(ext)
}

// BatchPrefix is the key namespace holding a batch's reference images.
func BatchPrefix(batch string) string {
	return SanitizeKeyPart(batch) + "/"
}

// NormalizeName normalizes a name for comparison (lowercase, no diacritics, collapsed spaces).
func NormalizeName(name string) string {
	name = strings.ToLower(RemoveDiacritics(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
