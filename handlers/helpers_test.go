package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/services"
	"github.com/Dosada05/tournament-api/validation"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"title":"Final"}`, ""},
		{"empty", ``, "body must not be empty"},
		{"syntax", `{"title":}`, "badly-formed JSON"},
		{"truncated", `{"title":"Fi`, "badly-formed JSON"},
		{"wrong type", `{"title":7}`, `incorrect JSON type for field "title"`},
		{"unknown field", `{"title":"Final","venue":"Arena"}`, `unknown key "venue"`},
		{"two values", `{"title":"a"}{"title":"b"}`, "single JSON value"},
		{"too large", `{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "must not be larger than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Final", dst.Title)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	rs := responder{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	verrs := validation.Errors{"title": "must be provided"}
	validationErr := errors.Join(services.ErrValidationFailed, verrs)

	tests := []struct {
		name   string
		method string
		err    error
		want   int
	}{
		{"not found", http.MethodGet, services.ErrGameNotFound, http.StatusNotFound},
		{"validation on post", http.MethodPost, validationErr, http.StatusBadRequest},
		{"validation on patch", http.MethodPatch, validationErr, http.StatusUnprocessableEntity},
		{"patch op", http.MethodPatch, &patch.OperationError{Index: 0, Op: "replace", Path: "/id", Err: patch.ErrInvalidPath}, http.StatusBadRequest},
		{"id mismatch", http.MethodPut, services.ErrIDMismatch, http.StatusBadRequest},
		{"conflict", http.MethodPut, services.ErrConcurrencyConflict, http.StatusConflict},
		{"logo storage", http.MethodPut, services.ErrLogoStorageUnavailable, http.StatusServiceUnavailable},
		{"unknown", http.MethodGet, errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rs.mapServiceErrorToHTTP(rec, httptest.NewRequest(tt.method, "/", nil), tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "pq:", "storage details must not leak")
		})
	}
}

func TestGetIDFromURL(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", value)
		return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.WithValue(context.Background(), chi.RouteCtxKey, rctx))
	}

	id, err := getIDFromURL(withParam("12"), "id")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := getIDFromURL(withParam(bad), "id")
		assert.Error(t, err, bad)
	}
}

func TestQueryBool(t *testing.T) {
	v, err := queryBool(httptest.NewRequest(http.MethodGet, "/?includeGames=true", nil), "includeGames")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = queryBool(httptest.NewRequest(http.MethodGet, "/", nil), "includeGames")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = queryBool(httptest.NewRequest(http.MethodGet, "/?includeGames=yes", nil), "includeGames")
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws/tournaments/1", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	allowAll := originChecker(nil)
	assert.True(t, allowAll(req("https://evil.example")))
	assert.True(t, originChecker([]string{"*"})(req("https://evil.example")))

	strict := originChecker([]string{"https://app.example"})
	assert.True(t, strict(req("https://app.example")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))
}
