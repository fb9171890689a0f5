// Package identity は外部IdPが発行したIDトークンのデコードを提供する。
//
// デコーダーは署名を検証しない。署名の検証は発行元IdPおよび配信環境の責務とし、
// 必要な場合のみVerifierを差し込む。
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/appshell/internal/model"
)

// ErrMalformedToken はトークンの形式が不正でデコードできないことを示す。
var ErrMalformedToken = errors.New("malformed identity token")

// Claims はIDトークンから取り出したクレーム。
type Claims struct {
	jwt.RegisteredClaims
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// SessionIdentity はクレームからSessionIdentityを構築する。
func (c Claims) SessionIdentity() model.SessionIdentity {
	return model.SessionIdentity{
		DisplayName: c.Name,
		Email:       c.Email,
		AvatarURL:   c.Picture,
	}
}

// Verifier はIDトークンの署名を検証する。
// nilの場合は検証を行わずクレームをそのまま信頼する。
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Decoder はコンパクト形式のIDトークンをクレームにデコードする。
type Decoder struct {
	parser *jwt.Parser
}

// NewDecoder はDecoderを生成する。
func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser()}
}

// ValidateShape はトークンがヘッダー・ペイロード・署名の3セグメントから成るかを検証する。
// デコード前の事前チェックとして使用する。
func ValidateShape(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrMalformedToken)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	if parts[1] == "" {
		return fmt.Errorf("%w: empty payload segment", ErrMalformedToken)
	}
	return nil
}

// Decode はトークンのペイロードをデコードしてクレームを返す。
// 署名は検証しない。
func (d *Decoder) Decode(token string) (Claims, error) {
	if err := ValidateShape(token); err != nil {
		return Claims{}, err
	}

	var claims Claims
	if _, _, err := d.parser.ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	return claims, nil
}
