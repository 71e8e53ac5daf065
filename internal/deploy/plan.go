// Package deploy runs an ordered contract deployment plan.
//
// Steps run strictly in order. A step argument is either a literal or a
// reference "${<step>.address}" to the address produced by an earlier step.
// Nothing runs in parallel and nothing is rolled back on failure.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownReference is returned when an argument references a step that
// does not run before it.
var ErrUnknownReference = errors.New("unknown step reference")

var refPattern = regexp.MustCompile(`^\$\{([A-Za-z0-9_-]+)\.address\}$`)

// Step deploys one contract.
type Step struct {
	Name     string   `yaml:"name"`
	Contract string   `yaml:"contract"`
	Args     []string `yaml:"args"`
}

// Plan is an ordered list of steps.
type Plan struct {
	Network string `yaml:"network"`
	Steps   []Step `yaml:"steps"`
}

// Stablecoin used by the default plan (USDT on mainnet).
const DefaultStablecoin = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

// DefaultPlan deploys the pool token, then the pooling contract bound to
// stablecoin and the new token.
func DefaultPlan(stablecoin string) Plan {
	if stablecoin == "" {
		stablecoin = DefaultStablecoin
	}
	return Plan{
		Steps: []Step{
			{Name: "BusinessPoolToken", Contract: "BusinessPoolToken"},
			{Name: "BusinessPooling", Contract: "BusinessPooling", Args: []string{stablecoin, Ref("BusinessPoolToken")}},
		},
	}
}

// Ref returns the argument that references step's deployed address.
func Ref(step string) string {
	return "${" + step + ".address}"
}

// LoadPlan reads a plan from a YAML file.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	// ${VAR} expands from the environment; step references are left alone.
	expanded := os.Expand(string(data), func(name string) string {
		if strings.HasSuffix(name, ".address") {
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})

	var p Plan
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return Plan{}, fmt.Errorf("parse plan yaml: %w", err)
	}
	return p, nil
}

// Validate checks step names and that every reference points to an
// earlier step.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New("plan has no steps")
	}

	done := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Name == "" {
			return fmt.Errorf("steps[%d].name is required", i)
		}
		if s.Contract == "" {
			return fmt.Errorf("steps[%d].contract is required", i)
		}
		if done[s.Name] {
			return fmt.Errorf("steps[%d].name %q is duplicated", i, s.Name)
		}
		for j, arg := range s.Args {
			ref, ok := reference(arg)
			if !ok {
				continue
			}
			if !done[ref] {
				return fmt.Errorf("steps[%d].args[%d]: %w %q", i, j, ErrUnknownReference, ref)
			}
		}
		done[s.Name] = true
	}
	return nil
}

// reference returns the step named by arg if arg is a reference.
func reference(arg string) (string, bool) {
	m := refPattern.FindStringSubmatch(arg)
	if m == nil {
		return "", false
	}
	return m[1], true
}
