package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/appshell/internal/middleware"
	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/session"
)

// AuthHandler はサインイン・サインアウトのHTTPハンドラー。
// IdPのコールバックが受け取った認証メッセージをページに中継する。
type AuthHandler struct {
	pages  PageProvider
	logger *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(pages PageProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{pages: pages, logger: logger}
}

// Credential は認証メッセージを受け取り、サインインを完了する。
// POST /auth/credential
// ボディは {"credential": "<IDトークン>", "select_by": "btn"} の形式。
func (h *AuthHandler) Credential(w http.ResponseWriter, r *http.Request) {
	// 1. メッセージのデコード
	var msg session.CredentialMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialError("invalid JSON"))
		return
	}

	// 2. ページの取得
	page := pageFromRequest(w, r, h.pages, h.logger, "")
	if page == nil {
		return
	}

	// 3. サインイン（形式の検証はセッションコントローラー側で行う）
	if err := page.SignIn(r.Context(), msg); err != nil {
		h.logger.Warn("sign-in rejected",
			slog.String("client_id", page.ClientID()),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page.Snapshot())
}

// SignOut はセッションを破棄してランディングに戻す。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(w, r, h.pages, h.logger, "")
	if page == nil {
		return
	}

	if err := page.SignOut(r.Context()); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page.Snapshot())
}
