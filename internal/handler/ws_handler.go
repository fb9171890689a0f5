package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/appshell/internal/middleware"
	"github.com/hitoshi/appshell/internal/model"
	"github.com/hitoshi/appshell/internal/session"
	"github.com/hitoshi/appshell/internal/shell"
)

// イベント種別
const (
	eventNavigate      = "navigate"
	eventToggleTheme   = "toggle_theme"
	eventToggleSidebar = "toggle_sidebar"
	eventCloseSidebar  = "close_sidebar"
	eventCredential    = "credential"
	eventSignOut       = "sign_out"
	eventSnapshot      = "snapshot"
)

// wsEvent はクライアントから届くイベント。
type wsEvent struct {
	Type       string `json:"type"`
	Fragment   string `json:"fragment,omitempty"`
	Credential string `json:"credential,omitempty"`
	SelectBy   string `json:"select_by,omitempty"`
}

// wsMessage はクライアントに送るメッセージ。Typeは "snapshot" または "error"。
type wsMessage struct {
	Type  string                        `json:"type"`
	State *shell.State                  `json:"state,omitempty"`
	Error *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// SignInLimiter はクライアントごとのサインイン回数を制限する。
type SignInLimiter interface {
	AllowSignIn(clientID string) bool
}

// EventHandler はWebSocketでページのイベントを受け付けるハンドラー。
// 1接続につき1ページを操作し、イベントごとにスナップショットを返す。
type EventHandler struct {
	pages    PageProvider
	signIn   SignInLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEventHandler はEventHandlerを生成する。
// allowedOriginが空の場合は同一オリジンからの接続のみ受け付ける。
// signInがnilの場合はcredentialイベントを制限しない。
func NewEventHandler(pages PageProvider, allowedOrigin string, signIn SignInLimiter, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		pages:  pages,
		signIn: signIn,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowedOrigin)
			},
		},
		logger: logger,
	}
}

// checkOrigin はOriginヘッダーが許可されたオリジンまたは同一ホストかを判定する。
func checkOrigin(r *http.Request, allowedOrigin string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowedOrigin != "" && origin == allowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// ServeHTTP はWebSocketにアップグレードし、イベントループを実行する。
// GET /ws?fragment=xxx
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. ページの取得（アップグレード前にエラーをHTTPで返す）
	page := pageFromRequest(w, r, h.pages, h.logger, r.URL.Query().Get("fragment"))
	if page == nil {
		return
	}

	// 接続中はページを破棄させない
	release := page.Hold()
	defer release()

	// 2. アップグレード
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	logger := h.logger.With(slog.String("client_id", page.ClientID()))

	// 3. 接続直後の状態を送る
	if err := h.sendSnapshot(conn, page); err != nil {
		logger.Warn("websocket write failed", slog.String("error", err.Error()))
		return
	}

	// 4. イベントループ
	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var ev wsEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			if err := h.sendError(conn, model.NewInvalidRequestError("invalid message format")); err != nil {
				return
			}
			continue
		}

		if err := h.dispatch(ctx, page, ev); err != nil {
			status, apiErr := mapError(err)
			if status == http.StatusInternalServerError {
				logger.Error("websocket event failed",
					slog.String("event", ev.Type),
					slog.String("error", err.Error()),
				)
			}
			if err := h.sendError(conn, apiErr); err != nil {
				return
			}
			continue
		}

		if err := h.sendSnapshot(conn, page); err != nil {
			logger.Warn("websocket write failed", slog.String("error", err.Error()))
			return
		}
	}
}

// dispatch はイベントをページの操作に振り分ける。
func (h *EventHandler) dispatch(ctx context.Context, page *shell.Page, ev wsEvent) error {
	switch ev.Type {
	case eventNavigate:
		page.Navigate(ctx, ev.Fragment)
	case eventToggleTheme:
		return page.ToggleTheme(ctx)
	case eventToggleSidebar:
		page.ToggleSidebar()
	case eventCloseSidebar:
		page.CloseSidebar()
	case eventCredential:
		if h.signIn != nil && !h.signIn.AllowSignIn(page.ClientID()) {
			return model.NewRateLimitError()
		}
		return page.SignIn(ctx, session.CredentialMessage{
			Credential: ev.Credential,
			SelectBy:   ev.SelectBy,
		})
	case eventSignOut:
		return page.SignOut(ctx)
	case eventSnapshot:
	default:
		return model.NewInvalidRequestError("unknown event type: " + ev.Type)
	}
	return nil
}

func (h *EventHandler) sendSnapshot(conn *websocket.Conn, page *shell.Page) error {
	state := page.Snapshot()
	return conn.WriteJSON(wsMessage{Type: "snapshot", State: &state})
}

func (h *EventHandler) sendError(conn *websocket.Conn, apiErr *model.APIError) error {
	return conn.WriteJSON(wsMessage{
		Type: "error",
		Error: &middleware.ErrorResponseBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
	})
}
