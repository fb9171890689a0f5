// Package model はドメインモデルを定義する。
package model

// SessionIdentity はログイン中ユーザーの最小プロフィールを表す。
// 永続化されたこのレコードの有無が「ログイン済みかどうか」の唯一の判定基準となる。
type SessionIdentity struct {
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"picture"`
}

// Theme は表示テーマの設定値を表す。
type Theme string

const (
	// ThemeLight はライトテーマ。未設定時のデフォルト。
	ThemeLight Theme = "light"
	// ThemeDark はダークテーマ。
	ThemeDark Theme = "dark"
)

// ParseTheme は文字列をThemeに変換する。
// 未知の値や空文字列はThemeLightとして扱う。
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle は反対側のテーマを返す。
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// Icon はテーマ切替ボタンに表示するアイコン名を返す。
func (t Theme) Icon() string {
	if t == ThemeDark {
		return "dark_mode"
	}
	return "light_mode"
}
