package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Load_AppliesNamespaceDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(`grammar = "g.gtab"`)
	assert.NoError(err)
	assert.Equal("ll", cfg.Lexer.Namespace)
	assert.Equal("LL", cfg.Lexer.Prefix)
	assert.Equal("pp", cfg.Parser.Namespace)
	assert.Equal("PP", cfg.Parser.Prefix)
}

func Test_Load_RespectsExplicitValues(t *testing.T) {
	assert := assert.New(t)

	src := `
grammar = "g.gtab"
keyword_threshold = 4

[lexer]
namespace = "mylex"
prefix = "MYLEX"

[parser]
namespace = "myparse"
prefix = "MYPARSE"
`
	cfg, err := Load(src)
	assert.NoError(err)
	assert.Equal("mylex", cfg.Lexer.Namespace)
	assert.Equal("MYLEX", cfg.Lexer.Prefix)
	assert.Equal("myparse", cfg.Parser.Namespace)
	assert.Equal("MYPARSE", cfg.Parser.Prefix)
	assert.Equal(4, cfg.KeywordThreshold)
}

func Test_Load_RejectsMalformedTOML(t *testing.T) {
	assert := assert.New(t)

	_, err := Load(`this is not valid toml =====`)
	assert.Error(err)
}

func Test_Config_ProjectOptions(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(`grammar = "g.gtab"`)
	assert.NoError(err)

	opts := cfg.ProjectOptions()
	assert.Equal("ll", opts.LexerNamespace)
	assert.Equal("LL", opts.LexerPrefix)
	assert.Equal("pp", opts.ParserNamespace)
	assert.Equal("PP", opts.ParserPrefix)
}
