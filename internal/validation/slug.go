package validation

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxTermNameLength = 64

// Letters that do not decompose under NFD.
var foldReplacer = strings.NewReplacer(
	"ı", "i", "İ", "i",
	"ß", "ss",
	"ø", "o", "Ø", "o",
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
)

// Slugify folds a display name into its url-safe identity: diacritics are
// stripped, letters lower-cased, and every run of other characters becomes
// a single hyphen. "Tech", "tech" and " TECH " share one slug.
func Slugify(name string) string {
	folded := foldReplacer.Replace(name)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, folded); err == nil {
		folded = out
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// ValidateTermName trims a category or tag name and checks it yields a slug.
func ValidateTermName(name string) (string, string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", "", fmt.Errorf("name is required")
	}
	if len([]rune(name)) > maxTermNameLength {
		return "", "", fmt.Errorf("name must not exceed %d characters", maxTermNameLength)
	}
	slug := Slugify(name)
	if slug == "" {
		return "", "", fmt.Errorf("name must contain at least one letter or digit")
	}
	if len(slug) > maxTermNameLength {
		slug = strings.TrimRight(slug[:maxTermNameLength], "-")
	}
	return name, slug, nil
}
