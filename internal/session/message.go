package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/appshell/internal/identity"
)

// CredentialMessage はIdPのコールバックから届く認証メッセージ。
type CredentialMessage struct {
	Credential string `json:"credential"`
	SelectBy   string `json:"select_by,omitempty"`

	// Reply が設定されている場合、Listenは処理結果を送信する。
	Reply chan<- error `json:"-"`
}

// Validate はメッセージの形式を検証する。
func (m CredentialMessage) Validate() error {
	if strings.TrimSpace(m.Credential) == "" {
		return fmt.Errorf("%w: credential is required", ErrInvalidMessage)
	}
	if err := identity.ValidateShape(m.Credential); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}

// HandleCredential はメッセージの形式を検証してからサインインを完了する。
// 形式が不正な場合はトークンをデコードしない。
func (c *Controller) HandleCredential(ctx context.Context, msg CredentialMessage) error {
	if err := msg.Validate(); err != nil {
		c.cfg.Logger.Warn("不正な認証メッセージを破棄しました",
			slog.String("select_by", msg.SelectBy),
			slog.String("error", err.Error()),
		)
		return err
	}
	return c.CompleteSignIn(ctx, msg.Credential)
}

// Listen はチャネルから届く認証メッセージを順に処理する。
// ctxがキャンセルされるか、チャネルが閉じられると終了する。
func (c *Controller) Listen(ctx context.Context, messages <-chan CredentialMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			err := c.HandleCredential(ctx, msg)
			if err != nil {
				c.cfg.Logger.Error("サインインに失敗しました",
					slog.String("error", err.Error()),
				)
			}
			if msg.Reply != nil {
				msg.Reply <- err
			}
		}
	}
}
