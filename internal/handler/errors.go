package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/appshell/internal/identity"
	"github.com/hitoshi/appshell/internal/middleware"
	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/session"
	"github.com/hitoshi/appshell/internal/shell"
)

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はコントローラーから返されたエラーをHTTPレスポンスに変換する。
// 内部エラーの詳細はloggerにのみ記録する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode, apiErr := mapError(err)
	if statusCode == http.StatusInternalServerError {
		logger.Error("internal server error", slog.String("error", err.Error()))
	}
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// mapError はエラーをHTTPステータスコードとAPIErrorに変換する。
// 既知でないエラーは内部エラーとして扱う。
func mapError(err error) (int, *model.APIError) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return statusForCode(apiErr.Code), apiErr
	case errors.Is(err, session.ErrInvalidMessage):
		return http.StatusBadRequest, model.NewInvalidCredentialError(err.Error())
	case errors.Is(err, identity.ErrMalformedToken):
		return http.StatusBadRequest, model.NewMalformedTokenError()
	case errors.Is(err, session.ErrVerificationFailed):
		return http.StatusUnauthorized, model.NewVerificationFailedError()
	case errors.Is(err, shell.ErrPageClosed):
		return http.StatusConflict, model.NewClientNotFoundError()
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}

// statusForCode はエラーコードに対応するHTTPステータスコードを返す。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeVerificationFail:
		return http.StatusUnauthorized
	case model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
