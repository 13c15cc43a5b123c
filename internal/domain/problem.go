package domain

// Difficulty buckets problems for browsing.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Problem represents a practice problem shown in the problem view.
type Problem struct {
	ProblemID   string            `json:"problem_id"`
	Title       string            `json:"title"`
	Difficulty  Difficulty        `json:"difficulty"`
	Description string            `json:"description"`
	StarterCode map[string]string `json:"starter_code"` // language tag -> snippet
}

// StarterFor returns the starter code for a language tag, or empty if the
// problem ships none for it.
func (p *Problem) StarterFor(language string) string {
	if p.StarterCode == nil {
		return ""
	}
	return p.StarterCode[language]
}
