package worklist

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-flogo/petriflow"
)

const parallelJSON = `
{
  "id": "parallel",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "cx" },
    { "id": "cy" },
    { "id": "dx" },
    { "id": "dy" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "Start", "split": "and" },
    { "id": "X", "decomposition": "work" },
    { "id": "Y", "decomposition": "work" },
    { "id": "End", "join": "and" }
  ],
  "flows": [
    { "from": "in", "to": "Start" },
    { "from": "Start", "to": "cx" },
    { "from": "Start", "to": "cy" },
    { "from": "cx", "to": "X" },
    { "from": "cy", "to": "Y" },
    { "from": "X", "to": "dx" },
    { "from": "Y", "to": "dy" },
    { "from": "dx", "to": "End" },
    { "from": "dy", "to": "End" },
    { "from": "End", "to": "out" }
  ]
}
`

func newTestServer(t *testing.T) *httptest.Server {
	ws, err := NewService(petriflow.New(), map[string]interface{}{"port": "0"})
	require.NoError(t, err)

	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body string, out interface{}) int {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t)

	status := map[string]string{}
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/status", "", &status))
	assert.Equal(t, "ok", status["status"])

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodOptions, "/cases", "", nil))
}

func TestWorklistLifecycle(t *testing.T) {
	srv := newTestServer(t)

	created := &IDResponse{}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/specifications", parallelJSON, created))
	assert.Equal(t, "parallel", created.ID)

	var specs []string
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/specifications", "", &specs))
	assert.Equal(t, []string{"parallel"}, specs)

	launched := &IDResponse{}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/cases", `{"specId":"parallel","data":{"amount":10}}`, launched))
	caseID := launched.ID

	var items []*WorkItemView
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/cases/"+caseID+"/workitems", "", &items))
	require.Len(t, items, 2)

	for _, item := range items {
		assert.Equal(t, "Enabled", item.Status)

		view := &WorkItemView{}
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/workitems/"+item.ID+"/allocate", `{"participant":"alice"}`, view))
		assert.Equal(t, "alice", view.Participant)

		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/workitems/"+item.ID+"/start", "", view))
		assert.Equal(t, "Executing", view.Status)

		body := `{"output":{"` + item.TaskID + `":"done"}}`
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/workitems/"+item.ID+"/complete", body, view))
		assert.Equal(t, "Complete", view.Status)
	}

	c := &CaseView{}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/cases/"+caseID, "", c))
	assert.Equal(t, "Completed", c.Status)
	assert.Equal(t, "done", c.Data["X"])
	assert.Equal(t, "done", c.Data["Y"])

	var cases []*CaseView
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/cases", "", &cases))
	assert.Len(t, cases, 1)

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodDelete, "/specifications/parallel", "", nil))
}

func TestCaseActions(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/specifications", parallelJSON, nil))

	launched := &IDResponse{}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/cases", `{"specId":"parallel","noStart":true}`, launched))

	c := &CaseView{}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/cases/"+launched.ID+"/start", "", c))
	assert.Equal(t, "Running", c.Status)
	assert.ElementsMatch(t, []string{"X", "Y"}, c.Enabled)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/cases/"+launched.ID+"/suspend", "", c))
	assert.Equal(t, "Suspended", c.Status)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/cases/"+launched.ID+"/resume", "", c))
	assert.Equal(t, "Running", c.Status)

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/cases/"+launched.ID+"/fire", `{"taskId":"X"}`, nil))

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodDelete, "/specifications/parallel", "", nil),
		"specification of an active case cannot be unloaded")

	c = &CaseView{}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/cases/"+launched.ID+"/cancel", "", c))
	assert.Equal(t, "Cancelled", c.Status)
	assert.Empty(t, c.Marking)
}

func TestErrorStatus(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/specifications", `{"id":"broken"}`, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/specifications", `not json`, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/cases", `{}`, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/cases", `{"specId":"unknown"}`, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/cases/unknown", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/workitems/unknown:X:1", "", nil))

	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/specifications", parallelJSON, nil))
	launched := &IDResponse{}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/cases", `{"specId":"parallel"}`, launched))

	var items []*WorkItemView
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/cases/"+launched.ID+"/workitems", "", &items))
	require.NotEmpty(t, items)

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/workitems/"+items[0].ID+"/complete", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/workitems/"+items[0].ID+"/explode", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/cases/"+launched.ID+"/explode", "", nil))
}

func TestServerStartStop(t *testing.T) {
	ws, err := NewService(petriflow.New(), map[string]interface{}{"port": 0})
	require.NoError(t, err)
	assert.Equal(t, "Worklist", ws.Name())

	require.NoError(t, ws.Start())
	assert.Error(t, ws.server.Start(), "already started")
	assert.NotEmpty(t, ws.server.InstanceID())

	_, port, err := net.SplitHostPort(ws.server.ListenAddr())
	require.NoError(t, err)

	resp, err := http.Get("http://127.0.0.1:" + port + "/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ws.server.InstanceID(), resp.Header.Get("X-Server-Instance-Id"))

	require.NoError(t, ws.Stop())
	require.NoError(t, ws.WaitStop(time.Second))
}
