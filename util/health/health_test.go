package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(status int, message string, err error) CheckFunc {
	return func(context.Context, bool) (int, string, error) {
		return status, message, err
	}
}

func TestCheckAll(t *testing.T) {
	status, body, err := CheckAll(context.Background(), true, []Check{
		{Name: "server", Check: fixed(http.StatusOK, "OK", nil)},
		{Name: "nested", Check: fixed(http.StatusOK, `{"status":"200"}`, nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, json.Valid([]byte(body)), body)

	status, body, err = CheckAll(context.Background(), false, []Check{
		{Name: "server", Check: fixed(http.StatusOK, "OK", nil)},
		{Name: "peers", Check: fixed(http.StatusServiceUnavailable, "no peers", nil)},
		{Name: "store", Check: fixed(http.StatusOK, "OK", errors.NewStorageError("disk gone"))},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, json.Valid([]byte(body)), body)
	assert.Contains(t, body, "disk gone")
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(fixed(http.StatusOK, `{"status":"200"}`, nil), true)(rec, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"200"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Handler(fixed(http.StatusOK, "{}", errors.NewServiceError("broken")), false)(rec, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckHTTPServer(t *testing.T) {
	srv := httptest.NewServer(Handler(fixed(http.StatusOK, "{}", nil), true))
	defer srv.Close()

	status, _, err := CheckHTTPServer(srv.URL, "/")(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, _, err = CheckHTTPServer("http://127.0.0.1:1", "/health")(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestCheckHTTPServerReturnsRemoteReport(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://seed.example:8000/health/readiness",
		httpmock.NewStringResponder(http.StatusOK, `{"status": "200"}`))
	httpmock.RegisterResponder(http.MethodGet, "http://down.example:8000/health/readiness",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"status": "503"}`))

	status, body, err := CheckHTTPServer("http://seed.example:8000/", "/health/readiness")(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status": "200"}`, body)

	status, body, err = CheckHTTPServer("http://down.example:8000", "health/readiness")(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status": "503"}`, body)

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}
