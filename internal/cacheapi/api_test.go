package cacheapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dekarrin/gentab/internal/project"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestAPI(t *testing.T) (API, *httptest.Server) {
	t.Helper()
	api := API{
		Store:       newTestStore(t),
		Secret:      []byte("test-secret"),
		UnauthDelay: 0,
		Opts:        project.DefaultOptions(),
	}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return api, srv
}

func Test_API_Info_NoAuthRequired(t *testing.T) {
	assert := assert.New(t)
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/info")
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
}

func Test_API_Login_UnknownOwner(t *testing.T) {
	assert := assert.New(t)
	_, srv := newTestAPI(t)

	body, _ := json.Marshal(loginRequest{Owner: "ghost", Key: "whatever"})
	resp, err := http.Post(srv.URL+"/login", "application/json", bytes.NewReader(body))
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_API_Login_WrongKey(t *testing.T) {
	assert := assert.New(t)
	api, srv := newTestAPI(t)

	assert.NoError(provisionOwner(api, "alice", "correct-key"))

	body, _ := json.Marshal(loginRequest{Owner: "alice", Key: "wrong-key"})
	resp, err := http.Post(srv.URL+"/login", "application/json", bytes.NewReader(body))
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_API_Login_Succeeds(t *testing.T) {
	assert := assert.New(t)
	api, srv := newTestAPI(t)

	assert.NoError(provisionOwner(api, "alice", "correct-key"))

	body, _ := json.Marshal(loginRequest{Owner: "alice", Key: "correct-key"})
	resp, err := http.Post(srv.URL+"/login", "application/json", bytes.NewReader(body))
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusCreated, resp.StatusCode)

	var lr loginResponse
	assert.NoError(json.NewDecoder(resp.Body).Decode(&lr))
	assert.NotEmpty(lr.Token)
}

func Test_API_Jobs_RequireAuth(t *testing.T) {
	assert := assert.New(t)
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/jobs/" + uuid.New().String())
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_API_GetJob_AuthedButMissing(t *testing.T) {
	assert := assert.New(t)
	api, srv := newTestAPI(t)

	assert.NoError(provisionOwner(api, "alice", "correct-key"))
	tok := loginAndGetToken(t, srv, "alice", "correct-key")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/jobs/"+uuid.New().String(), nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_API_GetJob_BadID(t *testing.T) {
	assert := assert.New(t)
	api, srv := newTestAPI(t)

	assert.NoError(provisionOwner(api, "alice", "correct-key"))
	tok := loginAndGetToken(t, srv, "alice", "correct-key")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/jobs/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_API_CreateJob_RejectsMalformedGrammar(t *testing.T) {
	assert := assert.New(t)
	api, srv := newTestAPI(t)

	assert.NoError(provisionOwner(api, "alice", "correct-key"))
	tok := loginAndGetToken(t, srv, "alice", "correct-key")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/jobs", bytes.NewReader([]byte("not a grammar file at all")))
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func provisionOwner(api API, owner, key string) error {
	hash, err := hashAPIKey(key)
	if err != nil {
		return err
	}
	_, err = api.Store.CreateAPIKey(context.Background(), owner, hash)
	return err
}

func loginAndGetToken(t *testing.T, srv *httptest.Server, owner, key string) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Owner: owner, Key: key})
	resp, err := http.Post(srv.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %s", err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login response: %s", err)
	}
	return lr.Token
}
