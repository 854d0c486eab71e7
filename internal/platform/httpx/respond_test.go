package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOKWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, http.StatusCreated, "created", map[string]int{"n": 1})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"success":true,"message":"created","data":{"n":1}}`, rec.Body.String())
}

func TestRespondErrorMapsKnownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	cause := errors.New("unexpected EOF")
	RespondError(rec, BadRequest("body is not valid JSON", cause))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)
	require.Equal(t, "about:blank", env.Error.Type)
	require.Equal(t, "body is not valid JSON", env.Error.Detail)
	require.ErrorIs(t, BadRequest("x", cause), cause)
}

func TestRespondErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
	require.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestDecodeJSONLimitsBody(t *testing.T) {
	var target map[string]string
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"b"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	require.Equal(t, "b", target["a"])

	huge := `{"a":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	var tooBig *http.MaxBytesError
	require.ErrorAs(t, DecodeJSON(httptest.NewRecorder(), req, &target), &tooBig)
}
