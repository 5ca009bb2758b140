package cacheapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ContentHash_Deterministic(t *testing.T) {
	assert := assert.New(t)

	a := ContentHash("[terminals]\nNUM\n")
	b := ContentHash("[terminals]\nNUM\n")
	assert.Equal(a, b)

	c := ContentHash("[terminals]\nID\n")
	assert.NotEqual(a, c)
}

func Test_HashAPIKey_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	hash, err := hashAPIKey("correct-horse-battery-staple")
	assert.NoError(err)
	assert.NotEqual("correct-horse-battery-staple", hash)

	assert.NoError(checkAPIKey(hash, "correct-horse-battery-staple"))
	assert.Error(checkAPIKey(hash, "wrong-key"))
}

func Test_IssueAndParseToken_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("test-secret")
	tok, err := issueToken("alice", secret)
	assert.NoError(err)
	assert.NotEmpty(tok)

	owner, err := parseOwnerFromToken(tok, secret)
	assert.NoError(err)
	assert.Equal("alice", owner)
}

func Test_ParseOwnerFromToken_RejectsWrongSecret(t *testing.T) {
	assert := assert.New(t)

	tok, err := issueToken("alice", []byte("secret-a"))
	assert.NoError(err)

	_, err = parseOwnerFromToken(tok, []byte("secret-b"))
	assert.Error(err)
}

func Test_GetBearerToken(t *testing.T) {
	assert := assert.New(t)

	req, _ := http.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")

	tok, err := getBearerToken(req)
	assert.NoError(err)
	assert.Equal("abc.def.ghi", tok)
}

func Test_GetBearerToken_MissingHeader(t *testing.T) {
	assert := assert.New(t)

	req, _ := http.NewRequest(http.MethodGet, "/jobs", nil)
	_, err := getBearerToken(req)
	assert.Error(err)
}

func Test_GetBearerToken_WrongScheme(t *testing.T) {
	assert := assert.New(t)

	req, _ := http.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Basic abc")
	_, err := getBearerToken(req)
	assert.Error(err)
}
