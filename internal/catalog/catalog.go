// Package catalog loads the scenario catalog and answers selection queries
// over it.
//
// A catalog is a single YAML document with three top-level keys:
//
//	intents:    scenario id -> primary intent
//	actions:    intent -> routed action
//	scenarios:  the scenario list
//
// Decoding is strict: unknown keys are rejected so that typos such as
// "validation:" for "validate:" fail loudly instead of silently dropping
// checks. Schema and semantic validation are separate steps (see Validate);
// Load only parses.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/convoprobe/internal/rule"
)

// Catalog is a parsed scenario catalog.
type Catalog struct {
	// Intents maps a scenario id to the intent it primarily exercises.
	Intents map[string]string `yaml:"intents,omitempty"`
	// Actions maps an intent to the action the assistant routes it to.
	Actions map[string]string `yaml:"actions,omitempty"`

	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one canned conversation plus the rules its turns must satisfy.
// Scenarios are read-only once loaded.
type Scenario struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Category    string       `yaml:"category" json:"category"`
	Suite       string       `yaml:"suite,omitempty" json:"suite,omitempty"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Messages    []Message    `yaml:"messages" json:"messages"`
	Validate    []Validation `yaml:"validate,omitempty" json:"validate,omitempty"`
}

// Message is one guest turn.
type Message struct {
	Text string `yaml:"text" json:"text"`
	// Attachment is an opaque marker (e.g. "image") passed through to the assistant.
	Attachment string `yaml:"attachment,omitempty" json:"attachment,omitempty"`
}

// Validation is a group of rules applied to the turn at index Turn.
type Validation struct {
	Turn  int       `yaml:"turn" json:"turn"`
	Rules rule.List `yaml:"rules" json:"rules"`
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// IntentFor returns the primary intent recorded for a scenario id.
func (c *Catalog) IntentFor(id string) string {
	return c.Intents[id]
}

// ActionFor returns the routed action for a scenario id, following
// scenario id -> intent -> action. Empty if either link is missing.
func (c *Catalog) ActionFor(id string) string {
	intent, ok := c.Intents[id]
	if !ok {
		return ""
	}
	return c.Actions[intent]
}
