// Package sanitize provides best-effort textual filtering of user code before
// execution or submission. It is pattern-based friction, not a parser and not
// a security boundary — obfuscated constructs will get through; the sandbox
// is the actual containment layer.
package sanitize

import (
	"regexp"
	"strings"
)

// Violation records one matched unsafe construct. Purely descriptive.
type Violation struct {
	Rule  string `json:"rule"`
	Match string `json:"match"`
}

// Result is the outcome of Sanitize.
type Result struct {
	SanitizedText string      `json:"sanitized_text"`
	Violations    []Violation `json:"violations,omitempty"`
}

type unsafeRule struct {
	name    string
	pattern *regexp.Regexp
}

// Fixed unsafe-construct rules, matched case-insensitively unless noted. One
// violation is recorded per rule that matches, regardless of how often it
// matches.
var unsafeRules = []unsafeRule{
	{"dynamic-evaluation", regexp.MustCompile(`(?i)\beval\s*\(`)},
	// "Function(" stays case-sensitive: a case-insensitive match would flag
	// every anonymous "function (x)" expression.
	{"dynamic-function-construction", regexp.MustCompile(`(?i:\bnew\s+function\s*\()|\bFunction\s*\(`)},
	{"timer", regexp.MustCompile(`(?i)\bset(?:Timeout|Interval|Immediate)\s*\(`)},
	{"browser-global", regexp.MustCompile(`(?i)\b(?:document|window|globalThis|navigator)\s*\.`)},
	{"network-access", regexp.MustCompile(`(?i)\bfetch\s*\(|\bXMLHttpRequest\b|\bnew\s+WebSocket\s*\(`)},
	{"storage-access", regexp.MustCompile(`(?i)\b(?:localStorage|sessionStorage|indexedDB)\b`)},
	{"dynamic-module-loading", regexp.MustCompile(`(?i)\bimport\s*\(|\brequire\s*\(`)},
}

// Per-language allow-lists for import/include constructs. Anything outside
// the list is stripped by Sanitize.
var (
	pythonAllowedModules = map[string]bool{
		"math": true, "re": true, "json": true, "random": true,
		"collections": true, "itertools": true, "functools": true,
		"heapq": true, "bisect": true, "string": true, "typing": true,
	}
	javaAllowedPrefixes = []string{"java.util."}
	cppAllowedHeaders   = map[string]bool{
		"iostream": true, "vector": true, "string": true, "algorithm": true,
		"map": true, "set": true, "queue": true, "stack": true,
		"cmath": true, "cstdio": true, "cstdlib": true, "numeric": true,
		"utility": true, "climits": true,
	}
)

var (
	pythonImportRe = regexp.MustCompile(`^\s*(?:import\s+([A-Za-z_][\w.]*)|from\s+([A-Za-z_][\w.]*)\s+import\b)`)
	jsImportRe     = regexp.MustCompile(`^\s*import\s|\brequire\s*\(`)
	javaImportRe   = regexp.MustCompile(`^\s*import\s+([\w.*]+)\s*;`)
	cppIncludeRe   = regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`)

	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe   = regexp.MustCompile(`//[^\n]*`)
	pythonCommentRe = regexp.MustCompile(`#[^\n]*`)
)

// IsSafe returns true iff none of the fixed unsafe-construct rules match.
func IsSafe(code string) bool {
	for _, rule := range unsafeRules {
		if rule.pattern.MatchString(code) {
			return false
		}
	}
	return true
}

// Check returns one violation per matched unsafe rule. Empty means safe.
func Check(code string) []Violation {
	var violations []Violation
	for _, rule := range unsafeRules {
		if m := rule.pattern.FindString(code); m != "" {
			violations = append(violations, Violation{Rule: rule.name, Match: strings.TrimSpace(m)})
		}
	}
	return violations
}

// Sanitize records violations for every matched unsafe rule (non-fatal), then
// strips non-allow-listed imports/includes for the language, strips comments,
// and strips blank lines.
func Sanitize(code, language string) Result {
	result := Result{Violations: Check(code)}

	text := stripComments(code, language)

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isDisallowedImport(line, language) {
			continue
		}
		kept = append(kept, line)
	}

	result.SanitizedText = strings.Join(kept, "\n")
	return result
}

func stripComments(code, language string) string {
	switch language {
	case "python":
		return pythonCommentRe.ReplaceAllString(code, "")
	case "javascript", "java", "cpp":
		code = blockCommentRe.ReplaceAllString(code, "")
		return lineCommentRe.ReplaceAllString(code, "")
	default:
		return code
	}
}

func isDisallowedImport(line, language string) bool {
	switch language {
	case "python":
		m := pythonImportRe.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		module := m[1]
		if module == "" {
			module = m[2]
		}
		root, _, _ := strings.Cut(module, ".")
		return !pythonAllowedModules[root]
	case "javascript":
		// No allow-list: the runner provides no module resolution.
		return jsImportRe.MatchString(line)
	case "java":
		m := javaImportRe.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		for _, prefix := range javaAllowedPrefixes {
			if strings.HasPrefix(m[1], prefix) {
				return false
			}
		}
		return true
	case "cpp":
		m := cppIncludeRe.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		return !cppAllowedHeaders[m[1]]
	default:
		return false
	}
}
