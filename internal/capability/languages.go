// internal/capability/languages.go
package capability

import (
	"sort"
	"strings"
)

// Language is an entry of the translation catalogue.
type Language struct {
	Code  string
	Name  string
	Group string
}

// Catalogue groups.
const (
	GroupMajor    = "Major World Languages"
	GroupEuropean = "European Languages"
	GroupAsian    = "Asian Languages"
	GroupOther    = "Other Languages"
)

const (
	// DetectionDisplayThreshold hides guesses at or below this confidence.
	DetectionDisplayThreshold = 0.01
	// DetectionSelectThreshold is the confidence above which a guess replaces the source language.
	DetectionSelectThreshold = 0.5
	// DetectionDisplayLimit caps the number of guesses shown next to the translation input.
	DetectionDisplayLimit = 3
)

// Languages is the translation catalogue in display order.
var Languages = []Language{
	{"en", "English", GroupMajor},
	{"zh", "Chinese (Simplified)", GroupMajor},
	{"zh-TW", "Chinese (Traditional)", GroupMajor},
	{"es", "Spanish", GroupMajor},
	{"ar", "Arabic", GroupMajor},
	{"hi", "Hindi", GroupMajor},
	{"bn", "Bengali", GroupMajor},
	{"pt", "Portuguese", GroupMajor},
	{"ru", "Russian", GroupMajor},
	{"ja", "Japanese", GroupMajor},
	{"de", "German", GroupMajor},
	{"fr", "French", GroupMajor},
	{"it", "Italian", GroupMajor},
	{"ko", "Korean", GroupMajor},
	{"tr", "Turkish", GroupMajor},
	{"vi", "Vietnamese", GroupMajor},
	{"th", "Thai", GroupMajor},
	{"nl", "Dutch", GroupMajor},

	{"sv", "Swedish", GroupEuropean},
	{"da", "Danish", GroupEuropean},
	{"no", "Norwegian", GroupEuropean},
	{"fi", "Finnish", GroupEuropean},
	{"pl", "Polish", GroupEuropean},
	{"cs", "Czech", GroupEuropean},
	{"sk", "Slovak", GroupEuropean},
	{"hu", "Hungarian", GroupEuropean},
	{"ro", "Romanian", GroupEuropean},
	{"bg", "Bulgarian", GroupEuropean},
	{"hr", "Croatian", GroupEuropean},
	{"sr", "Serbian", GroupEuropean},
	{"sl", "Slovenian", GroupEuropean},
	{"et", "Estonian", GroupEuropean},
	{"lv", "Latvian", GroupEuropean},
	{"lt", "Lithuanian", GroupEuropean},
	{"el", "Greek", GroupEuropean},
	{"he", "Hebrew", GroupEuropean},
	{"uk", "Ukrainian", GroupEuropean},

	{"ta", "Tamil", GroupAsian},
	{"te", "Telugu", GroupAsian},
	{"mr", "Marathi", GroupAsian},
	{"ur", "Urdu", GroupAsian},
	{"fa", "Persian", GroupAsian},
	{"id", "Indonesian", GroupAsian},
	{"ms", "Malay", GroupAsian},
	{"fil", "Filipino", GroupAsian},
	{"my", "Burmese", GroupAsian},
	{"km", "Khmer", GroupAsian},
	{"lo", "Lao", GroupAsian},

	{"sw", "Swahili", GroupOther},
	{"am", "Amharic", GroupOther},
	{"ha", "Hausa", GroupOther},
	{"yo", "Yoruba", GroupOther},
	{"ig", "Igbo", GroupOther},
	{"zu", "Zulu", GroupOther},
}

// LanguageName returns the display name of a code, or the code itself when unknown.
func LanguageName(code string) string {
	if lang, ok := lookupLanguage(code); ok {
		return lang.Name
	}
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	return code
}

// IsSupportedLanguage reports whether the code is part of the catalogue.
func IsSupportedLanguage(code string) bool {
	_, ok := lookupLanguage(code)
	return ok
}

// SupportsPair reports whether a translation between the two codes can be offered.
func SupportsPair(source, target string) bool {
	return source != target && IsSupportedLanguage(source) && IsSupportedLanguage(target)
}

// CorrectTarget returns target unless it equals source, in which case the first
// catalogue language that differs from source is returned.
func CorrectTarget(source, target string) string {
	if source != target {
		return target
	}
	for _, lang := range Languages {
		if lang.Code != source {
			return lang.Code
		}
	}
	return "en"
}

// NextLanguage cycles through the catalogue, skipping the excluded code.
func NextLanguage(code, exclude string, step int) string {
	n := len(Languages)
	idx := 0
	for i, lang := range Languages {
		if lang.Code == code {
			idx = i
			break
		}
	}
	for i := 0; i < n; i++ {
		idx = ((idx+step)%n + n) % n
		if Languages[idx].Code != exclude {
			return Languages[idx].Code
		}
	}
	return code
}

// VisibleDetections sorts guesses by confidence and drops the ones at or below the
// display threshold. A limit of zero or less keeps every visible guess.
func VisibleDetections(results []Detection, limit int) []Detection {
	out := make([]Detection, 0, len(results))
	for _, r := range results {
		if r.Confidence > DetectionDisplayThreshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AutoSource returns the language a translation page should switch its source to,
// or false when the top guess is not confident enough, unknown, or already selected.
func AutoSource(results []Detection, current string) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	top := results[0]
	for _, r := range results[1:] {
		if r.Confidence > top.Confidence {
			top = r
		}
	}
	if top.Confidence <= DetectionSelectThreshold {
		return "", false
	}
	if !IsSupportedLanguage(top.Language) || top.Language == current {
		return "", false
	}
	return top.Language, true
}

func lookupLanguage(code string) (Language, bool) {
	for _, lang := range Languages {
		if lang.Code == code {
			return lang, true
		}
	}
	return Language{}, false
}
