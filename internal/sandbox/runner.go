// Package sandbox executes user code through an isolated backend: either a
// remote execution API or locally managed Docker containers.
package sandbox

import (
	"context"
)

// UnsupportedLanguageMessage is returned as run output when the language tag
// has no provider mapping. Decided locally, no backend call is made.
const UnsupportedLanguageMessage = "Unsupported language."

// NoOutputMessage is returned when a run produced no output at all.
const NoOutputMessage = "No output"

// Runner executes one source snippet and returns its output. Runner errors
// are diagnostic: callers surface them as run-output text, they never abort
// the request.
type Runner interface {
	Run(ctx context.Context, source, language string) (string, error)
}

// Fixed language table mapping editor language tags to provider-defined
// integer codes (Judge0 CE identifiers).
var languageIDs = map[string]int{
	"javascript": 63,
	"python":     71,
	"java":       62,
	"cpp":        54,
}

// IsSupported reports whether the language tag has a provider mapping.
func IsSupported(language string) bool {
	_, ok := languageIDs[language]
	return ok
}

// SupportedLanguages returns the language tags with provider mappings.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(languageIDs))
	for lang := range languageIDs {
		langs = append(langs, lang)
	}
	return langs
}
