package language

import (
	"fmt"
	"sort"
	"strings"
)

// Language is a translation target the service accepts.
type Language struct {
	// Code is the value sent as target_lang. The service keys its
	// translator on lowercase English names, not ISO codes.
	Code   string
	Name   string
	Script string
}

// Default is the service's own fallback when no target is sent.
const Default = "english"

// Languages is the closed set of supported target languages, code -> Language.
var Languages = map[string]Language{
	"english":   {Code: "english", Name: "English", Script: "Latin"},
	"hindi":     {Code: "hindi", Name: "Hindi", Script: "Devanagari"},
	"tamil":     {Code: "tamil", Name: "Tamil", Script: "Tamil"},
	"telugu":    {Code: "telugu", Name: "Telugu", Script: "Telugu"},
	"malayalam": {Code: "malayalam", Name: "Malayalam", Script: "Malayalam"},
	"marathi":   {Code: "marathi", Name: "Marathi", Script: "Devanagari"},
	"bengali":   {Code: "bengali", Name: "Bengali", Script: "Bengali"},
	"kannada":   {Code: "kannada", Name: "Kannada", Script: "Kannada"},
	"gujarati":  {Code: "gujarati", Name: "Gujarati", Script: "Gujarati"},
	"french":    {Code: "french", Name: "French", Script: "Latin"},
	"spanish":   {Code: "spanish", Name: "Spanish", Script: "Latin"},
	"german":    {Code: "german", Name: "German", Script: "Latin"},
}

// GetLanguage returns the language for an exact code.
func GetLanguage(code string) (Language, bool) {
	lang, ok := Languages[code]
	return lang, ok
}

// IsSupported reports whether code belongs to the fixed set.
func IsSupported(code string) bool {
	_, ok := Languages[code]
	return ok
}

// GetSupportedLanguages returns all languages sorted by Name.
func GetSupportedLanguages() []Language {
	entries := make([]Language, 0, len(Languages))
	for _, v := range Languages {
		entries = append(entries, v)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Resolve accepts a code or a display name, case-insensitively.
func Resolve(input string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return "", fmt.Errorf("language is empty")
	}
	if lang, ok := GetLanguage(needle); ok {
		return lang.Code, nil
	}
	for _, lang := range Languages {
		if strings.EqualFold(lang.Name, needle) {
			return lang.Code, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %s", input)
}
