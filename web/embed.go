// Package web はページとして配信するビュー断片を埋め込む。
package web

import (
	"embed"
	"io/fs"
)

//go:embed views
var files embed.FS

// Views はビュー断片のファイルシステムを返す。
// パスはルート定義のコンテンツロケーター（views/xxx.html）と一致する。
func Views() fs.FS {
	return files
}
