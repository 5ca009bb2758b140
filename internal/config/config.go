// Package config loads gentab.toml, the generator's project-level defaults
// for the command-surface flags of spec.md §6 (namespaces, prefixes, output
// paths), so a repository can check in its preferred settings instead of
// repeating them on every invocation.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/dekarrin/gentab/internal/project"
)

// Config mirrors gentab.toml's top-level shape.
type Config struct {
	Grammar string `toml:"grammar"`

	Lexer struct {
		Namespace string `toml:"namespace"`
		Prefix    string `toml:"prefix"`
		Header    string `toml:"header"`
		Source    string `toml:"source"`
	} `toml:"lexer"`

	Parser struct {
		Namespace string `toml:"namespace"`
		Prefix    string `toml:"prefix"`
		Header    string `toml:"header"`
		Source    string `toml:"source"`
	} `toml:"parser"`

	KeywordThreshold int `toml:"keyword_threshold"`
}

// Load parses TOML text into a Config, applying the same namespace/prefix
// defaults DefaultOptions does for any field the file leaves blank.
func Load(src string) (*Config, error) {
	var c Config
	if _, err := toml.Decode(src, &c); err != nil {
		return nil, fmt.Errorf("gentab.toml: %w", err)
	}
	if c.Lexer.Namespace == "" {
		c.Lexer.Namespace = "ll"
	}
	if c.Lexer.Prefix == "" {
		c.Lexer.Prefix = "LL"
	}
	if c.Parser.Namespace == "" {
		c.Parser.Namespace = "pp"
	}
	if c.Parser.Prefix == "" {
		c.Parser.Prefix = "PP"
	}
	return &c, nil
}

// ProjectOptions translates a loaded Config into project.Options.
func (c *Config) ProjectOptions() project.Options {
	return project.Options{
		LexerNamespace:   c.Lexer.Namespace,
		LexerPrefix:      c.Lexer.Prefix,
		ParserNamespace:  c.Parser.Namespace,
		ParserPrefix:     c.Parser.Prefix,
		KeywordThreshold: c.KeywordThreshold,
	}
}
