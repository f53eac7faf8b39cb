package snippets

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/internal/storage_manager"
)

func newTestHost(t *testing.T) *bridge.Host {
	t.Helper()
	host := bridge.NewHost()
	store := NewStore(storage_manager.NewLocalFileProvider(t.TempDir()))
	require.NoError(t, host.Register(NewController(store)))
	return host
}

type wireResponse struct {
	ErrorMessage string          `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
}

func call(t *testing.T, host *bridge.Host, request string) wireResponse {
	t.Helper()
	var resp wireResponse
	require.NoError(t, json.Unmarshal([]byte(host.ProcessRequest(request)), &resp))
	return resp
}

func TestControllerSaveThenSearch(t *testing.T) {
	host := newTestHost(t)

	resp := call(t, host, `{"controller":"Snippets","action":"Save","data":{"text":"ls -la\nfind . -name x"}}`)
	require.Empty(t, resp.ErrorMessage)

	var saved Snippet
	require.NoError(t, json.Unmarshal(resp.Data, &saved))
	assert.NotEmpty(t, saved.ID)

	resp = call(t, host, `{"controller":"snippets","action":"search","data":{"text":"FIND"}}`)
	require.Empty(t, resp.ErrorMessage)

	var results []SearchResult
	require.NoError(t, json.Unmarshal(resp.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "find . -name x", results[0].Match)
	assert.Equal(t, saved.ID, results[0].Snippet.ID)
}

func TestControllerEmptySearchReturnsEmptyArray(t *testing.T) {
	host := newTestHost(t)

	out := host.ProcessRequest(`{"controller":"Snippets","action":"Search","data":{"text":""}}`)
	assert.JSONEq(t, `{"data":[]}`, out)
}

func TestControllerErrors(t *testing.T) {
	host := newTestHost(t)

	resp := call(t, host, `{"controller":"Snippets","action":"Get","data":{"id":"missing"}}`)
	assert.Contains(t, resp.ErrorMessage, "snippet not found")

	resp = call(t, host, `{"controller":"Snippets","action":"Save","data":{"id":"../x","text":"t"}}`)
	assert.Contains(t, resp.ErrorMessage, "invalid snippet id")

	resp = call(t, host, `{"controller":"Snippets","action":"Save","data":"not an object"}`)
	assert.True(t, strings.HasPrefix(resp.ErrorMessage, "invalid request"), resp.ErrorMessage)
}

func TestControllerListAndDelete(t *testing.T) {
	host := newTestHost(t)

	call(t, host, `{"controller":"Snippets","action":"Save","data":{"id":"one","text":"1"}}`)
	call(t, host, `{"controller":"Snippets","action":"Save","data":{"id":"two","text":"2"}}`)

	resp := call(t, host, `{"controller":"Snippets","action":"Delete","data":{"id":"one"}}`)
	require.Empty(t, resp.ErrorMessage)

	resp = call(t, host, `{"controller":"Snippets","action":"List"}`)
	var all []Snippet
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Equal(t, []Snippet{{ID: "two", Text: "2"}}, all)
}
