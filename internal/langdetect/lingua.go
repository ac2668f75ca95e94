package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest sample the detector is asked about. Shorter
// titles ("Help?", "ISA") produce noise.
const minLetters = 12

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Forum sections are English speaking; the other languages catch the
// occasional cross-post so it is not mislabelled as English.
var candidateLanguages = []lingua.Language{
	lingua.English,
	lingua.German,
	lingua.French,
	lingua.Spanish,
	lingua.Italian,
	lingua.Dutch,
	lingua.Portuguese,
	lingua.Polish,
	lingua.Swedish,
}

// DetectISO6391 returns a lowercase ISO 639-1 code for text, or "" when the
// language cannot be determined.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// Disabled is a tagger that never labels anything.
func Disabled(string) string { return "" }

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidateLanguages...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}
