// Package questionnaire holds the topics a user can build a psychological
// map for, each with a short and a long question set.
package questionnaire

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"psybot/internal/models"
)

const (
	BasicQuestionCount    = 4
	ExtendedQuestionCount = 10
)

// Topic is one selectable questionnaire subject.
type Topic struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Basic    []string `yaml:"basic"`
	Extended []string `yaml:"extended"`
}

// Questions returns the question set for a variant.
func (t Topic) Questions(v models.Variant) []string {
	switch v {
	case models.VariantBasic:
		return append([]string(nil), t.Basic...)
	case models.VariantExtended:
		return append([]string(nil), t.Extended...)
	default:
		return nil
	}
}

// Catalog is an ordered list of topics. Users pick topics by their
// 1-based position.
type Catalog struct {
	Topics []Topic `yaml:"topics"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire file: %w", err)
	}
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to decode questionnaire file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every topic is addressable and has both question sets.
func (c *Catalog) Validate() error {
	if len(c.Topics) == 0 {
		return fmt.Errorf("questionnaire catalog is empty")
	}
	seen := make(map[string]bool, len(c.Topics))
	for i, t := range c.Topics {
		if t.ID == "" || t.Title == "" {
			return fmt.Errorf("topic #%d: id and title are required", i+1)
		}
		if seen[t.ID] {
			return fmt.Errorf("topic %q is declared twice", t.ID)
		}
		seen[t.ID] = true
		if len(t.Basic) == 0 || len(t.Extended) == 0 {
			return fmt.Errorf("topic %q: both basic and extended questions are required", t.ID)
		}
	}
	return nil
}

// Topic looks a topic up by id.
func (c *Catalog) Topic(id string) (Topic, bool) {
	for _, t := range c.Topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// ParseSelection resolves user input such as "3", "3." or "3. Самооценка"
// to a topic. Exact title matches are accepted too.
func (c *Catalog) ParseSelection(input string) (Topic, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Topic{}, false
	}

	digits := input
	if i := strings.IndexFunc(input, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = input[:i]
	}
	if digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil || n < 1 || n > len(c.Topics) {
			return Topic{}, false
		}
		return c.Topics[n-1], true
	}

	for _, t := range c.Topics {
		if strings.EqualFold(t.Title, input) {
			return t, true
		}
	}
	return Topic{}, false
}

// Labels returns the numbered topic labels ("1. Title") in catalog order.
func (c *Catalog) Labels() []string {
	labels := make([]string, len(c.Topics))
	for i, t := range c.Topics {
		labels[i] = fmt.Sprintf("%d. %s", i+1, t.Title)
	}
	return labels
}
