package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func Test_ParseID(t *testing.T) {
	testCases := []struct {
		name         string
		pathValue    string
		expectedID   int64
		expectedOK   bool
		expectedBody string
	}{
		{name: "Valid ID", pathValue: "42", expectedID: 42, expectedOK: true},
		{name: "Zero ID", pathValue: "0", expectedBody: `{"error":"Invalid ID: 0"}`},
		{name: "Negative ID", pathValue: "-3", expectedBody: `{"error":"Invalid ID: -3"}`},
		{name: "Not a number", pathValue: "abc", expectedBody: `{"error":"Invalid ID: abc"}`},
		{name: "Empty", pathValue: "", expectedBody: `{"error":"Invalid ID: "}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodGet, "/products/x", nil)
			req.SetPathValue("id", tc.pathValue)
			rr := httptest.NewRecorder()

			// when
			id, ok := ParseID(rr, req, discardLogger)

			// then
			assert.Equal(t, tc.expectedOK, ok)
			assert.Equal(t, tc.expectedID, id)
			if !tc.expectedOK {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
		})
	}
}

func Test_DecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "a", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	assert.ErrorIs(t, DecodeJSON(req, &dst), errTrailingData)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.Error(t, DecodeJSON(req, &dst))
}

func Test_RespondJSON_NilPayload(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondJSON(rr, discardLogger, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}

func Test_RespondValidationErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondValidationErrors(rr, discardLogger, map[string]string{"Name": "failed on rule: required"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"validation_errors":{"Name":"failed on rule: required"}}`, rr.Body.String())
}

func Test_RequestIDInjector(t *testing.T) {
	t.Run("generates id when missing", func(t *testing.T) {
		var seen, seenChi string
		h := RequestIDInjector(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen, _ = GetRequestID(r.Context())
			seenChi = middleware.GetReqID(r.Context())
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, seenChi)
		assert.Equal(t, seen, rr.Header().Get(middleware.RequestIDHeader))
	})
	t.Run("keeps chi request id", func(t *testing.T) {
		var seen string
		h := middleware.RequestID(RequestIDInjector(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen, _ = GetRequestID(r.Context())
		})))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "from-client")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "from-client", seen)
	})
}

func Test_Recoverer(t *testing.T) {
	h := Recoverer(discardLogger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func Test_RateLimiter(t *testing.T) {
	h := RateLimiter(0.0001, 2, discardLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func Test_StructuredLogger_PassesThrough(t *testing.T) {
	h := StructuredLogger(discardLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
