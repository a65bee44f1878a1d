package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/longregen/refinery/internal/ports"
)

// SuitePair names the two models of one concurrent pair test.
type SuitePair struct {
	Model1 string `yaml:"model1"`
	Model2 string `yaml:"model2"`
}

// Suite is a benchmark suite loaded from a YAML file: the models to
// profile sequentially, the pairs to test concurrently, and optional
// category/parameter batteries overriding the built-in ones.
type Suite struct {
	Models        []string               `yaml:"models"`
	Pairs         []SuitePair            `yaml:"pairs"`
	Categories    []ports.PromptCategory `yaml:"categories"`
	ParameterSets []ports.ParameterSet   `yaml:"parameter_sets"`
	RunsPerSet    int                    `yaml:"runs_per_set"`
}

// PairList returns the pairs in the [model1, model2] form the harness takes.
func (s *Suite) PairList() [][2]string {
	pairs := make([][2]string, 0, len(s.Pairs))
	for _, p := range s.Pairs {
		pairs = append(pairs, [2]string{p.Model1, p.Model2})
	}
	return pairs
}

// LoadSuite reads and validates a benchmark suite from a YAML file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite file %s: %w", path, err)
	}

	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Validate checks that the suite has valid values
func (s *Suite) Validate() error {
	var errs []string

	for i, model := range s.Models {
		if strings.TrimSpace(model) == "" {
			errs = append(errs, fmt.Sprintf("model %d: name is empty", i))
		}
	}

	for i, pair := range s.Pairs {
		if pair.Model1 == "" || pair.Model2 == "" {
			errs = append(errs, fmt.Sprintf("pair %d: model1 and model2 are required", i))
		}
	}

	for i, category := range s.Categories {
		if category.Name == "" {
			errs = append(errs, fmt.Sprintf("category %d: name is required", i))
		}
		if len(category.Prompts) == 0 {
			errs = append(errs, fmt.Sprintf("category %s: at least one prompt is required", category.Name))
		}
	}

	for i, set := range s.ParameterSets {
		if set.Name == "" {
			errs = append(errs, fmt.Sprintf("parameter set %d: name is required", i))
		}
		if set.Temperature < 0 || set.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("parameter set %s: temperature must be between 0 and 2", set.Name))
		}
		if set.TopP <= 0 || set.TopP > 1 {
			errs = append(errs, fmt.Sprintf("parameter set %s: top_p must be between 0 and 1", set.Name))
		}
	}

	if s.RunsPerSet < 0 {
		errs = append(errs, "runs_per_set cannot be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("suite errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
