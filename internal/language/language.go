package language

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is a language the translation prompts know by name.
type Language struct {
	Code string
	Name string
}

// Languages lists the languages with hand-tuned prompt labels. Other codes
// still work; their label comes from CLDR display names.
var Languages = map[string]Language{
	"ko": {Code: "ko", Name: "Korean"},
	"ja": {Code: "ja", Name: "Japanese"},
	"zh": {Code: "zh", Name: "Chinese"},
	"en": {Code: "en", Name: "English"},
	"es": {Code: "es", Name: "Spanish"},
	"fr": {Code: "fr", Name: "French"},
	"de": {Code: "de", Name: "German"},
}

// Normalize reduces a BCP 47 tag to its lower-case base language:
// "zh-Hans" -> "zh", "en_US" -> "en". Unparseable input is lower-cased and
// returned as is.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}

// Name returns the English label used in prompts.
func Name(code string) string {
	norm := Normalize(code)
	if lang, ok := Languages[norm]; ok {
		return lang.Name
	}
	if tag, err := language.Parse(norm); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return code
}

// GetLanguage returns the table entry for an exact code.
func GetLanguage(code string) (Language, bool) {
	lang, ok := Languages[code]
	return lang, ok
}

// GetSupportedLanguages returns the table sorted by Name.
func GetSupportedLanguages() []Language {
	out := make([]Language, 0, len(Languages))
	for _, v := range Languages {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
