package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/auth"
	"github.com/sakif/excuse-me/internal/excuse"
	"github.com/sakif/excuse-me/internal/model"
)

const maxExcuseBody = 16 << 10

// ExcuseSubmitter runs a generation request. *service.ExcuseService
// implements it.
type ExcuseSubmitter interface {
	Submit(ctx context.Context, userID string, raw map[string]string) (*model.ExcuseResult, error)
}

// ExcuseHandler serves the generator form.
type ExcuseHandler struct {
	excuses ExcuseSubmitter
	logger  *slog.Logger
}

// NewExcuseHandler creates an ExcuseHandler.
func NewExcuseHandler(excuses ExcuseSubmitter, logger *slog.Logger) *ExcuseHandler {
	return &ExcuseHandler{excuses: excuses, logger: logger}
}

// HandleSubmit generates an excuse.
//
// HTTP: POST /api/excuses
// Body: JSON object or form post with situation, tone, targetPerson,
// urgencyLevel and the matching custom* fields.
//
// Response: 200 {excuse, watermark, usage} or an ErrorResponse.
func (h *ExcuseHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	raw, err := decodeFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.excuses.Submit(r.Context(), userID, raw)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnknown {
			h.logger.Error("excuse submit failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleOptions returns the fixed choices for each form field.
//
// HTTP: GET /api/options
func (h *ExcuseHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		excuse.Options
		CustomText      string `json:"customText"`
		MaxCustomLength int    `json:"maxCustomLength"`
	}{
		Options:         excuse.AllOptions(),
		CustomText:      excuse.CustomText,
		MaxCustomLength: excuse.MaxCustomTextLength,
	})
}

// decodeFields flattens the submission into string fields. Non-string JSON
// values are dropped, so the validator reports them as missing. Browsers
// post FormData as multipart/form-data; file parts are ignored.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxExcuseBody)
	fields := make(map[string]string)

	if isJSON(r) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, apperror.ValidationFailed("", "request body must be a JSON object")
		}
		for k, v := range body {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
		return fields, nil
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxExcuseBody); err != nil {
			return nil, apperror.ValidationFailed("", "request body could not be parsed")
		}
		defer r.MultipartForm.RemoveAll()
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, apperror.ValidationFailed("", "request body could not be parsed")
	}
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}
	return fields, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
