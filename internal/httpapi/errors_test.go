package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/state"
)

func TestWriteRunErrorCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   Code
	}{
		{poll.ErrRunning, http.StatusConflict, CodeRunInProgress},
		{fmt.Errorf("lock: %w", state.ErrLocked), http.StatusConflict, CodeStateLocked},
		{errors.New("disk full"), http.StatusInternalServerError, CodeRunFailed},
	}
	for _, tc := range cases {
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeRunError(w, r, tc.err)
		}))
		req := httptest.NewRequest(http.MethodPost, "/runs?wait=1", nil)
		req.Header.Set("X-Request-ID", "run-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		var body errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.code, body.Error.Code)
		assert.Equal(t, "run-42", body.Error.RequestID)
		assert.Equal(t, tc.err.Error(), body.Error.Message)
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	for _, in := range []string{"", "has space", "x\"y", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", in)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Len(t, seen, 32, "%q", in)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client_ID-7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "client_ID-7", seen)
}
