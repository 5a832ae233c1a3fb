package services

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	languageDetector     lingua.LanguageDetector
	languageDetectorOnce sync.Once
)

var detectableLanguages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Russian,
}

// DetectLanguage returns the ISO 639-1 code of text in lower case, or empty when unsure.
func DetectLanguage(text string) string {
	languageDetectorOnce.Do(func() {
		languageDetector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectableLanguages...).
			WithLowAccuracyMode().
			Build()
	})

	if language, ok := languageDetector.DetectLanguageOf(text); ok {
		return strings.ToLower(language.IsoCode639_1().String())
	}
	return ""
}
