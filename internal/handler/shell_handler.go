// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/appshell/internal/middleware"
	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/shell"
)

// PageProvider はクライアントIDに対応する初期化済みのページを返す。
type PageProvider interface {
	Get(ctx context.Context, clientID, fragment string) (*shell.Page, error)
}

// ShellHandler はシェル操作のHTTPハンドラー。
// 各操作はページの状態を変更し、変更後のスナップショットを返す。
type ShellHandler struct {
	pages  PageProvider
	logger *slog.Logger
}

// NewShellHandler はShellHandlerを生成する。
func NewShellHandler(pages PageProvider, logger *slog.Logger) *ShellHandler {
	return &ShellHandler{pages: pages, logger: logger}
}

// fragmentRequest はフラグメント変更リクエストのボディ。
type fragmentRequest struct {
	Fragment string `json:"fragment"`
}

// pageFromRequest はリクエストのクライアントIDからページを取得する。
// 取得に失敗した場合はエラーレスポンスを書き込み、nilを返す。
func pageFromRequest(w http.ResponseWriter, r *http.Request, pages PageProvider, logger *slog.Logger, fragment string) *shell.Page {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewClientNotFoundError())
		return nil
	}

	page, err := pages.Get(r.Context(), clientID, fragment)
	if err != nil {
		handleServiceError(w, logger, err)
		return nil
	}
	return page
}

// GetShell は現在のページ状態を返す。初回アクセス時はページを生成する。
// GET /api/shell?fragment=xxx
// fragmentはページ生成時の初期値としてのみ使用する。
func (h *ShellHandler) GetShell(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(w, r, h.pages, h.logger, r.URL.Query().Get("fragment"))
	if page == nil {
		return
	}
	writeJSON(w, http.StatusOK, page.Snapshot())
}

// UpdateFragment はフラグメントを変更する。
// PUT /api/shell/fragment
func (h *ShellHandler) UpdateFragment(w http.ResponseWriter, r *http.Request) {
	var req fragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("invalid JSON"))
		return
	}

	page := pageFromRequest(w, r, h.pages, h.logger, req.Fragment)
	if page == nil {
		return
	}

	page.Navigate(r.Context(), req.Fragment)
	writeJSON(w, http.StatusOK, page.Snapshot())
}

// ToggleTheme はテーマを切り替える。
// POST /api/shell/theme/toggle
func (h *ShellHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(w, r, h.pages, h.logger, "")
	if page == nil {
		return
	}

	if err := page.ToggleTheme(r.Context()); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page.Snapshot())
}

// ToggleSidebar はサイドバーの開閉を切り替える。
// POST /api/shell/sidebar/toggle
func (h *ShellHandler) ToggleSidebar(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(w, r, h.pages, h.logger, "")
	if page == nil {
		return
	}

	page.ToggleSidebar()
	writeJSON(w, http.StatusOK, page.Snapshot())
}

// CloseSidebar はサイドバーを閉じる。
// POST /api/shell/sidebar/close
func (h *ShellHandler) CloseSidebar(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(w, r, h.pages, h.logger, "")
	if page == nil {
		return
	}

	page.CloseSidebar()
	writeJSON(w, http.StatusOK, page.Snapshot())
}
