package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/auth"
	"github.com/sakif/excuse-me/internal/handler"
	"github.com/sakif/excuse-me/internal/model"
)

// MockSubmitter records the submission and returns a canned result.
type MockSubmitter struct {
	CapturedUserID string
	CapturedRaw    map[string]string
	ReturnRes      *model.ExcuseResult
	ReturnErr      error
}

func (m *MockSubmitter) Submit(ctx context.Context, userID string, raw map[string]string) (*model.ExcuseResult, error) {
	m.CapturedUserID = userID
	m.CapturedRaw = raw
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedIn(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func TestExcuseHandler_HandleSubmit(t *testing.T) {
	t.Run("json submission", func(t *testing.T) {
		mock := &MockSubmitter{ReturnRes: &model.ExcuseResult{
			Excuse:    "The printer caught fire.",
			Watermark: true,
			Usage:     model.UsageSummary{Plan: model.PlanFree, Used: 1, Limit: 5, Remaining: 4},
		}}
		h := handler.NewExcuseHandler(mock, testLogger())

		body := `{"situation":"Late to office","tone":"Funny","targetPerson":"Boss","urgencyLevel":"Low","extra":42}`
		req := httptest.NewRequest(http.MethodPost, "/api/excuses", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleSubmit(rr, signedIn(req, "user-1"))

		require.Equal(t, http.StatusOK, rr.Code)

		var res model.ExcuseResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "The printer caught fire.", res.Excuse)
		assert.True(t, res.Watermark)
		assert.Equal(t, 4, res.Usage.Remaining)

		assert.Equal(t, "user-1", mock.CapturedUserID)
		assert.Equal(t, "Funny", mock.CapturedRaw["tone"])
		assert.NotContains(t, mock.CapturedRaw, "extra", "non-string values are dropped")
	})

	t.Run("form submission", func(t *testing.T) {
		mock := &MockSubmitter{ReturnRes: &model.ExcuseResult{Excuse: "ok"}}
		h := handler.NewExcuseHandler(mock, testLogger())

		form := url.Values{
			"situation":  {"Custom text"},
			"customText": {"my cat sat on my laptop"},
		}
		req := httptest.NewRequest(http.MethodPost, "/api/excuses", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()

		h.HandleSubmit(rr, signedIn(req, "user-1"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "my cat sat on my laptop", mock.CapturedRaw["customText"])
	})

	t.Run("multipart submission", func(t *testing.T) {
		mock := &MockSubmitter{ReturnRes: &model.ExcuseResult{Excuse: "ok"}}
		h := handler.NewExcuseHandler(mock, testLogger())

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for _, kv := range [][2]string{
			{"situation", "Late to office"},
			{"tone", "Funny"},
			{"targetPerson", "Boss"},
			{"urgencyLevel", "Low"},
		} {
			require.NoError(t, mw.WriteField(kv[0], kv[1]))
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/excuses", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()

		h.HandleSubmit(rr, signedIn(req, "user-1"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, map[string]string{
			"situation":    "Late to office",
			"tone":         "Funny",
			"targetPerson": "Boss",
			"urgencyLevel": "Low",
		}, mock.CapturedRaw)
	})

	t.Run("invalid json", func(t *testing.T) {
		mock := &MockSubmitter{}
		h := handler.NewExcuseHandler(mock, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/excuses", bytes.NewBufferString(`{"situation":`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleSubmit(rr, signedIn(req, "user-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, mock.CapturedRaw, "service must not be called")
	})
}

func TestExcuseHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantKind     string
		wantUpgrade  string
		wantRedirect string
		wantMessage  string
	}{
		{
			name:       "validation",
			err:        apperror.ValidationFailed("customText", "customText is required when situation is Custom text"),
			wantStatus: http.StatusBadRequest,
			wantKind:   "ValidationError",
		},
		{
			name:         "not authenticated",
			err:          apperror.Unauthenticated("Please sign in to generate excuses."),
			wantStatus:   http.StatusUnauthorized,
			wantKind:     "NotAuthenticated",
			wantRedirect: "/login?redirect=/",
		},
		{
			name:        "quota exceeded",
			err:         apperror.QuotaExceeded(5),
			wantStatus:  http.StatusTooManyRequests,
			wantKind:    "QuotaExceeded",
			wantUpgrade: "/pricing",
			wantMessage: "Daily limit of 5 excuses reached. Upgrade to Premium for unlimited excuses.",
		},
		{
			name:       "generation",
			err:        apperror.Generation(errors.New("upstream 500")),
			wantStatus: http.StatusBadGateway,
			wantKind:   "GenerationError",
		},
		{
			name:        "unknown",
			err:         errors.New("sql: connection refused on 10.0.0.3"),
			wantStatus:  http.StatusInternalServerError,
			wantKind:    "Unknown",
			wantMessage: "Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewExcuseHandler(&MockSubmitter{ReturnErr: tt.err}, testLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/excuses", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			h.HandleSubmit(rr, signedIn(req, "user-1"))

			assert.Equal(t, tt.wantStatus, rr.Code)

			var res handler.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
			assert.Equal(t, tt.wantKind, res.ErrorKind)
			assert.Equal(t, tt.wantUpgrade, res.UpgradeURL)
			assert.Equal(t, tt.wantRedirect, res.Redirect)
			assert.NotEmpty(t, res.Message)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, res.Message)
			}
		})
	}
}

func TestExcuseHandler_HandleOptions(t *testing.T) {
	h := handler.NewExcuseHandler(&MockSubmitter{}, testLogger())
	rr := httptest.NewRecorder()

	h.HandleOptions(rr, httptest.NewRequest(http.MethodGet, "/api/options", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Situations      []string `json:"situation"`
		Tones           []string `json:"tone"`
		TargetPersons   []string `json:"targetPerson"`
		UrgencyLevels   []string `json:"urgencyLevel"`
		CustomText      string   `json:"customText"`
		MaxCustomLength int      `json:"maxCustomLength"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Len(t, res.Situations, 8)
	assert.Equal(t, []string{"Low", "Medium", "Emergency", "Custom text"}, res.UrgencyLevels)
	assert.Equal(t, "Custom text", res.CustomText)
	assert.Equal(t, 500, res.MaxCustomLength)
}

// =========================================================================
// Usage / health
// =========================================================================

type fakeUsage struct {
	summary model.UsageSummary
	err     error
}

func (f fakeUsage) Usage(ctx context.Context, userID string) (model.UsageSummary, error) {
	return f.summary, f.err
}

func TestAccountHandler_HandleUsage(t *testing.T) {
	h := handler.NewAccountHandler(fakeUsage{summary: model.UsageSummary{Plan: model.PlanFree, Used: 2, Limit: 5, Remaining: 3}})
	rr := httptest.NewRecorder()

	h.HandleUsage(rr, signedIn(httptest.NewRequest(http.MethodGet, "/api/usage", nil), "user-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"plan":"FREE","used":2,"limit":5,"remaining":3,"unlimited":false}`, rr.Body.String())

	gone := handler.NewAccountHandler(fakeUsage{err: apperror.NotFound("user", "user-1")})
	rr = httptest.NewRecorder()
	gone.HandleUsage(rr, signedIn(httptest.NewRequest(http.MethodGet, "/api/usage", nil), "user-1"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.NewHealthHandler(fakePinger{}, testLogger()).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.NewHealthHandler(fakePinger{err: errors.New("down")}, testLogger()).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
