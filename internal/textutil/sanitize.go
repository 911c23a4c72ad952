package textutil

import "strings"

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Returns fallback when nothing usable remains.
func SanitizeFileName(name, fallback string) string {
	cleaned := strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// Slug converts a value to a lowercase token made of ASCII letters, digits,
// and single dashes. Returns "unknown" for empty input.
func Slug(value string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range Fold(value) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}

// ObjectKey joins slugged path segments with "/" for object storage keys. The
// final segment keeps its extension.
func ObjectKey(prefix string, segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	for i, segment := range segments {
		if i == len(segments)-1 {
			ext := ""
			if idx := strings.LastIndex(segment, "."); idx > 0 {
				ext = strings.ToLower(segment[idx:])
				segment = segment[:idx]
			}
			parts = append(parts, Slug(segment)+ext)
			continue
		}
		parts = append(parts, Slug(segment))
	}
	return strings.Join(parts, "/")
}
