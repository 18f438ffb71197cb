package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string
	code3   []string // ISO 639-2 terminology code first, bibliographic alternates after
	display string
}

var common = []entry{
	{"en", []string{"eng"}, "English"},
	{"es", []string{"spa"}, "Spanish"},
	{"fr", []string{"fra", "fre"}, "French"},
	{"de", []string{"deu", "ger"}, "German"},
	{"it", []string{"ita"}, "Italian"},
	{"pt", []string{"por"}, "Portuguese"},
	{"ja", []string{"jpn"}, "Japanese"},
	{"ko", []string{"kor"}, "Korean"},
	{"zh", []string{"zho", "chi"}, "Chinese"},
	{"ru", []string{"rus"}, "Russian"},
	{"ar", []string{"ara"}, "Arabic"},
	{"hi", []string{"hin"}, "Hindi"},
	{"nl", []string{"nld", "dut"}, "Dutch"},
	{"pl", []string{"pol"}, "Polish"},
	{"sv", []string{"swe"}, "Swedish"},
	{"da", []string{"dan"}, "Danish"},
	{"no", []string{"nor"}, "Norwegian"},
	{"fi", []string{"fin"}, "Finnish"},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(common)*4)
	for i := range common {
		e := &common[i]
		m[e.code2] = e
		m[strings.ToLower(e.display)] = e
		for _, code := range e.code3 {
			m[code] = e
		}
	}
	return m
}()

// Name returns the English name for a language code, tag, or name, so prompts
// read "Spanish" whether the caller sent "es", "spa", or "spanish". Regional
// tags such as "pt-BR" resolve through CLDR display names. Input that is not a
// recognizable language is returned trimmed and unchanged.
func Name(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if e, ok := index[strings.ToLower(value)]; ok {
		return e.display
	}
	tag, err := xlanguage.Parse(value)
	if err != nil {
		return value
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return value
}

// ISO2 returns the two-letter code for a recognized language, or "".
func ISO2(value string) string {
	if e, ok := index[strings.ToLower(strings.TrimSpace(value))]; ok {
		return e.code2
	}
	return ""
}
