package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// typographic punctuation that has no decomposition but a clear ASCII stand-in.
var punctuationReplacer = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", "\"", "”", "\"",
	"–", "-", "—", "-",
	"…", "...",
	" ", " ",
	"ß", "ss",
	"Æ", "AE", "æ", "ae",
	"Ø", "O", "ø", "o",
)

// ASCIIFold strips diacritics (é → e) and maps common typographic punctuation
// to ASCII. Characters with no ASCII form are left for the caller to filter.
func ASCIIFold(value string) string {
	value = punctuationReplacer.Replace(value)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// TitleCase capitalizes each word using English casing rules.
func TitleCase(value string) string {
	return cases.Title(language.English).String(strings.TrimSpace(value))
}
