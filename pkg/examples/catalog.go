// Package examples provides the catalog of demo programs served to the
// web client.
package examples

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antibyte/retroturtle/pkg/logger"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Example is one named demo program.
type Example struct {
	Name        string  `yaml:"name" json:"name"`
	Title       string  `yaml:"title" json:"title"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        TagList `yaml:"tags,omitempty" json:"tags,omitempty"`
	Program     string  `yaml:"program" json:"program"`
}

// Catalog is an ordered list of examples.
type Catalog struct {
	Examples []Example `yaml:"examples" json:"examples"`
}

// TagList accepts either a single tag or a sequence of tags.
type TagList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *TagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = TagList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var tag string
			if err := node.Decode(&tag); err != nil {
				return err
			}
			if tag = strings.TrimSpace(tag); tag != "" {
				items = append(items, tag)
			}
		}
		*l = TagList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	default:
		return fmt.Errorf("examples: expected tag or list of tags but found %s", value.ShortTag())
	}
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidationError lists every problem found in a catalog.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "examples: invalid catalog: " + strings.Join(e.Issues, "; ")
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(embeddedCatalog))
}

// Load reads a catalog file. An empty path selects the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("examples: open %s: %w", path, err)
	}
	defer file.Close()

	c, err := Parse(file)
	if err != nil {
		return nil, err
	}
	logger.Info(logger.AreaExamples, "loaded %d examples from %s", len(c.Examples), path)
	return c, nil
}

// Parse decodes and validates a catalog. Unknown fields are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var c Catalog
	if err := decoder.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("examples: catalog is empty")
		}
		return nil, fmt.Errorf("examples: parse: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs ValidationError
	seen := make(map[string]bool, len(c.Examples))
	for i, ex := range c.Examples {
		switch {
		case ex.Name == "":
			errs.Issues = append(errs.Issues, fmt.Sprintf("examples[%d]: name must be provided", i))
		case !namePattern.MatchString(ex.Name):
			errs.Issues = append(errs.Issues, fmt.Sprintf("examples[%d]: invalid name %q", i, ex.Name))
		case seen[ex.Name]:
			errs.Issues = append(errs.Issues, fmt.Sprintf("examples[%d]: duplicate name %q", i, ex.Name))
		}
		seen[ex.Name] = true

		if strings.TrimSpace(ex.Program) == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("examples[%d]: program must not be empty", i))
		}
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// Find returns the example with the given name.
func (c *Catalog) Find(name string) (Example, bool) {
	for _, ex := range c.Examples {
		if ex.Name == name {
			return ex, true
		}
	}
	return Example{}, false
}

// Names lists example names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Examples))
	for i, ex := range c.Examples {
		names[i] = ex.Name
	}
	return names
}
