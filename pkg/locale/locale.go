// Package locale holds the localized phrase tables shown while the companion
// thinks, fails or falls back.
package locale

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var embeddedPhrases []byte

const (
	English    = "en"
	Vietnamese = "vi"
)

type FallbackReply struct {
	ThoughtTrace string `yaml:"thought_trace"`
	Realm        string `yaml:"realm"`
	Advice       string `yaml:"advice"`
}

type Phrases struct {
	Analyzing         []string      `yaml:"analyzing"`
	ErrorGeneric      string        `yaml:"error_generic"`
	ErrorSilent       string        `yaml:"error_silent"`
	ActionTimer       string        `yaml:"action_timer"`
	ActionSound       string        `yaml:"action_sound"`
	ChatPersona       string        `yaml:"chat_persona"`
	OutputInstruction string        `yaml:"output_instruction"`
	Fallback          FallbackReply `yaml:"fallback"`
}

// Catalog maps a language code to its phrase table.
type Catalog struct {
	tables   map[string]Phrases
	fallback string
}

var defaultCatalog = mustLoad(embeddedPhrases)

func mustLoad(data []byte) *Catalog {
	c, err := Parse(data, English)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a YAML phrase document. defaultLang must be present in it.
func Parse(data []byte, defaultLang string) (*Catalog, error) {
	tables := map[string]Phrases{}
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse phrase tables: %w", err)
	}
	def, ok := tables[defaultLang]
	if !ok {
		return nil, fmt.Errorf("phrase tables missing default language %q", defaultLang)
	}
	if len(def.Analyzing) == 0 {
		return nil, fmt.Errorf("phrase table %q has no analyzing phrases", defaultLang)
	}
	return &Catalog{tables: tables, fallback: defaultLang}, nil
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog
}

// For returns the phrases for lang, or the default language when unknown.
func (c *Catalog) For(lang string) Phrases {
	if p, ok := c.tables[Normalize(lang)]; ok {
		return p
	}
	return c.tables[c.fallback]
}

func (c *Catalog) Supports(lang string) bool {
	_, ok := c.tables[Normalize(lang)]
	return ok
}

// Normalize lowercases lang and drops any region suffix ("vi-VN" -> "vi").
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
