package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medflow/pharmacy-backend/pkg/actor"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// --- Response Tests ---

func TestError_AppErrorCarriesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.OverReceipt(20, 0, 25))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OVER_RECEIPT", resp.Error.Code)
	assert.Equal(t, "20", resp.Error.Details["ordered"])
	assert.Equal(t, "0", resp.Error.Details["received"])
	assert.Equal(t, "20", resp.Error.Details["remaining"])
}

func TestError_UnknownErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var v struct {
		Quantity int `json:"quantity"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":3,"qty":4}`))
	err := DecodeJSON(r, &v)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=-1", nil)

	n, err := QueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = QueryInt(r, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = QueryInt(r, "bad", 50)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

// --- Validation Tests ---

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	type request struct {
		Quantity   int    `json:"quantity" validate:"gt=0"`
		ExpiryDate string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	}

	err := Validate(request{Quantity: 0, ExpiryDate: "01/02/2026"})
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "must be greater than 0", appErr.Details["quantity"])
	assert.Equal(t, "must be a date in the format 2006-01-02", appErr.Details["expiry_date"])

	assert.NoError(t, Validate(request{Quantity: 1, ExpiryDate: "2026-01-02"}))
}

// --- Middleware Tests ---

func TestRequestID_PropagatesToCorrelationID(t *testing.T) {
	var seen, correlation string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		correlation = messaging.CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", correlation)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestActor_RequiresIdentityForWrites(t *testing.T) {
	var got *actor.Actor
	h := Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = actor.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, got)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(actor.HeaderUserID, "u-1")
	req.Header.Set(actor.HeaderUserEmail, "ana@pharmacy.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "ana@pharmacy.test", got.Identifier())
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "an unexpected error occurred", resp.Error.Message)
}

func TestRequirePermission(t *testing.T) {
	h := Actor(RequirePermission("pharmacy.adjust")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name  string
		user  string
		perms string
		want  int
	}{
		{"anonymous read", "", "", http.StatusUnauthorized},
		{"no permissions", "u-1", "", http.StatusForbidden},
		{"other permission", "u-1", `["pharmacy.dispense"]`, http.StatusForbidden},
		{"granted", "u-1", `["pharmacy.adjust"]`, http.StatusNoContent},
		{"wildcard", "u-1", `["pharmacy.*"]`, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != "" {
				req.Header.Set(actor.HeaderUserID, tt.user)
			}
			if tt.perms != "" {
				req.Header.Set(actor.HeaderUserPermissions, tt.perms)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", decode(t, rec).Error.Code)
			}
		})
	}
}
