// Package problems loads the problem catalog from TOML packs and seeds it
// into the store. A pack is a single TOML file holding one or more problems;
// a built-in pack ships embedded so a fresh deployment always has content.
package problems

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/store"
)

//go:embed packs/default.toml
var defaultPack embed.FS

// pack is the on-disk TOML shape of a problem pack.
type pack struct {
	Problems []packProblem `toml:"problems"`
}

type packProblem struct {
	ID          string            `toml:"id"`
	Title       string            `toml:"title"`
	Difficulty  string            `toml:"difficulty"`
	Description string            `toml:"description"`
	StarterCode map[string]string `toml:"starter_code"`
}

func (p *packProblem) toDomain() (*domain.Problem, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("problem is missing an id")
	}
	if p.Title == "" {
		return nil, fmt.Errorf("problem %q is missing a title", p.ID)
	}

	diff := domain.Difficulty(strings.ToLower(p.Difficulty))
	switch diff {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
	default:
		return nil, fmt.Errorf("problem %q has unknown difficulty %q", p.ID, p.Difficulty)
	}

	return &domain.Problem{
		ProblemID:   p.ID,
		Title:       p.Title,
		Difficulty:  diff,
		Description: p.Description,
		StarterCode: p.StarterCode,
	}, nil
}

// parsePack decodes one TOML pack.
func parsePack(data []byte) ([]*domain.Problem, error) {
	var pk pack
	if err := toml.Unmarshal(data, &pk); err != nil {
		return nil, fmt.Errorf("decode pack: %w", err)
	}

	problems := make([]*domain.Problem, 0, len(pk.Problems))
	seen := make(map[string]bool)
	for i := range pk.Problems {
		prob, err := pk.Problems[i].toDomain()
		if err != nil {
			return nil, err
		}
		if seen[prob.ProblemID] {
			return nil, fmt.Errorf("duplicate problem id %q", prob.ProblemID)
		}
		seen[prob.ProblemID] = true
		problems = append(problems, prob)
	}
	return problems, nil
}

// LoadDefault parses the embedded built-in pack.
func LoadDefault() ([]*domain.Problem, error) {
	data, err := defaultPack.ReadFile("packs/default.toml")
	if err != nil {
		return nil, fmt.Errorf("read embedded pack: %w", err)
	}
	return parsePack(data)
}

// LoadDir parses every *.toml pack in dir, in filename order. Problems from
// later packs override earlier ones with the same id.
func LoadDir(dir string) ([]*domain.Problem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read problems dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	byID := make(map[string]*domain.Problem)
	var order []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read pack %s: %w", name, err)
		}
		probs, err := parsePack(data)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", name, err)
		}
		for _, p := range probs {
			if _, exists := byID[p.ProblemID]; !exists {
				order = append(order, p.ProblemID)
			}
			byID[p.ProblemID] = p
		}
	}

	out := make([]*domain.Problem, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// Seed loads the catalog and upserts it into the store. When dir is set and
// readable its packs are used; otherwise the embedded default pack is.
func Seed(ctx context.Context, repo store.Repository, dir string) error {
	var (
		problems []*domain.Problem
		err      error
		source   string
	)

	if dir != "" {
		problems, err = LoadDir(dir)
		source = dir
		if err != nil {
			slog.Warn("failed to load problem packs, falling back to built-in pack",
				"dir", dir, "error", err)
			problems = nil
		}
	}
	if problems == nil {
		problems, err = LoadDefault()
		source = "embedded"
		if err != nil {
			return fmt.Errorf("load built-in pack: %w", err)
		}
	}

	for _, p := range problems {
		if err := repo.UpsertProblem(ctx, p); err != nil {
			return fmt.Errorf("seed problem %s: %w", p.ProblemID, err)
		}
	}
	slog.Info("seeded problem catalog", "count", len(problems), "source", source)
	return nil
}
