package model

// RouteDescriptor はナビゲーション可能な1ページを表す。
// 起動時に定義され、以後変更されない。
type RouteDescriptor struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Icon           string `json:"icon"`
	ContentLocator string `json:"content_locator"`
}

// Href はナビゲーションリンクのフラグメント付きhrefを返す。
func (r RouteDescriptor) Href() string {
	return "#" + r.ID
}
