// Package policy implements the declarative rule store and evaluation
// engine for AI-proposed infrastructure actions and configurations.
package policy

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetFiles maps built-in policy set names to embedded documents
var presetFiles = map[string]string{
	"security":   "presets/security.yaml",
	"cost":       "presets/cost.yaml",
	"compliance": "presets/compliance.yaml",
}

// ruleSet is one immutable, fully compiled policy collection.
// programs is parallel to policies; nil entries are typed-condition rules.
type ruleSet struct {
	policies []models.Policy
	programs []cel.Program
	source   string
}

// Store holds the active rule set. Read-only between loads; Reload
// swaps the whole set atomically or keeps the old one untouched.
type Store struct {
	env *cel.Env

	mu  sync.RWMutex
	set *ruleSet
}

// NewStore creates an empty store with a CEL environment exposing
// the subject field map as `subject`.
func NewStore() (*Store, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Store{env: env, set: &ruleSet{source: "empty"}}, nil
}

// Load reads a policy document file, or every *.yaml in a directory.
// The new set takes effect only if every document parses and every
// expression compiles; otherwise the previous set stays active and a
// ConfigurationError describes each problem.
func (s *Store) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("policy path: %w", err)
	}

	var files []string
	if info.IsDir() {
		entries, err := filepath.Glob(filepath.Join(path, "*.yaml"))
		if err != nil {
			return fmt.Errorf("policy dir: %w", err)
		}
		sort.Strings(entries)
		files = entries
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		return &models.ConfigurationError{Source: path, Problems: []string{"no policy documents found"}}
	}

	docs := make([]models.PolicyDocument, 0, len(files))
	var problems []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		var doc models.PolicyDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		docs = append(docs, doc)
	}
	if len(problems) > 0 {
		return &models.ConfigurationError{Source: path, Problems: problems}
	}

	return s.install(docs, path)
}

// LoadDefaults installs the built-in security, cost and compliance
// presets, mirroring behavior when no policy path is configured.
func (s *Store) LoadDefaults() error {
	return s.LoadPresets("security", "cost", "compliance")
}

// LoadPresets installs the named built-in policy sets as one unit
func (s *Store) LoadPresets(names ...string) error {
	docs := make([]models.PolicyDocument, 0, len(names))
	for _, name := range names {
		path, ok := presetFiles[name]
		if !ok {
			return &models.ConfigurationError{
				Source:   "presets",
				Problems: []string{fmt.Sprintf("unknown preset %q", name)},
			}
		}
		data, err := presetFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read preset %q: %w", name, err)
		}
		var doc models.PolicyDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse preset %q: %w", name, err)
		}
		docs = append(docs, doc)
	}
	return s.install(docs, "presets")
}

// PresetNames lists the built-in policy sets
func PresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// install validates and compiles everything up front, then swaps.
// Rules keep document order; documents keep load order.
func (s *Store) install(docs []models.PolicyDocument, source string) error {
	candidate := &ruleSet{source: source}
	var problems []string

	for _, doc := range docs {
		for _, rule := range doc.Rules {
			if rule.Category == "" {
				rule.Category = doc.Category
			}
			if rule.Category == "" {
				problems = append(problems, fmt.Sprintf("rule %q: no category (set on rule or document)", rule.Name))
				continue
			}
			if err := rule.Validate(); err != nil {
				problems = append(problems, err.Error())
				continue
			}

			var prg cel.Program
			if rule.Expr != "" {
				ast, issues := s.env.Compile(rule.Expr)
				if issues != nil && issues.Err() != nil {
					problems = append(problems, fmt.Sprintf("rule %q: %v", rule.Name, issues.Err()))
					continue
				}
				// Dyn passes here; field access on a dyn map defers
				// the type to eval time, where non-bool is a no-match.
				if out := ast.OutputType(); out != cel.BoolType && out != cel.DynType {
					problems = append(problems, fmt.Sprintf("rule %q: expr must return bool, got %s", rule.Name, out))
					continue
				}
				var err error
				prg, err = s.env.Program(ast)
				if err != nil {
					problems = append(problems, fmt.Sprintf("rule %q: %v", rule.Name, err))
					continue
				}
			}

			candidate.policies = append(candidate.policies, rule)
			candidate.programs = append(candidate.programs, prg)
		}
	}

	if len(problems) > 0 {
		return &models.ConfigurationError{Source: source, Problems: problems}
	}

	s.mu.Lock()
	s.set = candidate
	s.mu.Unlock()
	return nil
}

// current returns the active set; callers must not mutate it
func (s *Store) current() *ruleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Policies returns a copy of the loaded rules in load order
func (s *Store) Policies() []models.Policy {
	set := s.current()
	out := make([]models.Policy, len(set.policies))
	copy(out, set.policies)
	return out
}

// Len reports how many rules are loaded
func (s *Store) Len() int {
	return len(s.current().policies)
}

// Source names where the active set came from
func (s *Store) Source() string {
	return s.current().source
}
