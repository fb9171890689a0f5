// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// DefaultClientCookieName はクライアントIDを保持するCookieの名前。
const DefaultClientCookieName = "client_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// ClientCookieConfig はクライアントIDのCookie設定。
type ClientCookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge int // 秒
}

// NewClientMiddleware はCookieからクライアントIDを読み取り、コンテキストに注入するミドルウェアを返す。
// Cookieがない場合や値がUUIDでない場合は新しいIDを発行してCookieに設定する。
// クライアントIDはブラウザ単位のページとストレージの名前空間になる。
func NewClientMiddleware(config ClientCookieConfig) func(next http.Handler) http.Handler {
	name := config.Name
	if name == "" {
		name = DefaultClientCookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 既存のクライアントIDを検証
			var clientID string
			if cookie, err := r.Cookie(name); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			// 2. なければ発行する
			if clientID == "" {
				clientID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     name,
					Value:    clientID,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// 3. コンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}
