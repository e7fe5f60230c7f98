package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/festal-inc/haishin/internal/domain"
	"github.com/festal-inc/haishin/internal/middleware"
)

// validate checks struct tags on request payloads. Shared by all handlers;
// the validator caches struct metadata internally.
var validate = validator.New(validator.WithRequiredStructEnabled())

// errorResponse is the JSON body every failed request gets.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Default().Error("encode response", "error", err)
		}
	}
}

// respondError maps a domain error code to an HTTP status and writes the
// error body. Internal errors are logged with the request logger and their
// details hidden from the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)

	status := statusFromCode(code)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "サーバーエラーが発生しました"
	}

	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses and validates a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("handler.decode", "リクエストボディが不正です")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Invalid("handler.decode", "入力が不正です: "+verrs[0].Field())
		}
		return domain.Invalid("handler.decode", "入力が不正です")
	}
	return nil
}
