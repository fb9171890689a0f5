package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, navigation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeMalformedToken    = "MALFORMED_TOKEN"
	ErrCodeVerificationFail  = "TOKEN_VERIFICATION_FAILED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeClientNotFound    = "CLIENT_NOT_FOUND"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFFailed        = "CSRF_VALIDATION_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidCredentialError は認証メッセージの形式が不正な場合のエラーを生成する。
func NewInvalidCredentialError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  fmt.Sprintf("認証メッセージの形式が不正です: %s", reason),
		Category: "auth",
		Action:   "もう一度サインインしてください。",
	}
}

// NewMalformedTokenError はIDトークンをデコードできない場合のエラーを生成する。
func NewMalformedTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedToken,
		Message:  "IDトークンを読み取れませんでした。",
		Category: "auth",
		Action:   "もう一度サインインしてください。",
	}
}

// NewVerificationFailedError はIDトークンの検証に失敗した場合のエラーを生成する。
func NewVerificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeVerificationFail,
		Message:  "IDトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "もう一度サインインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewClientNotFoundError はクライアントIDに対応するページが存在しない場合のエラーを生成する。
func NewClientNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeClientNotFound,
		Message:  "ページが見つかりません。",
		Category: "navigation",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewRateLimitError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
