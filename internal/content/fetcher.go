// Package content はロケーターで指定されたページ断片を取得し、
// コンテンツ領域へ描画するローダーを提供する。
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultMaxBodySize はページ断片の最大サイズ（2MB）。
const DefaultMaxBodySize int64 = 2 * 1024 * 1024

// Response は取得結果。Statusは HTTPステータスコードに準ずる。
type Response struct {
	Status int
	Body   string
}

// OK は成功ステータスかどうかを返す。
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// StatusError は成功以外のステータスを表すエラー。
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Status, http.StatusText(e.Status))
}

// Fetcher はロケーターのペイロードを取得する。
// 通信エラーはerrorで、成功以外のステータスはResponse.Statusで返す。
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (Response, error)
}

// URLValidator はSSRF検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// HTTPFetcher はベースURLからの相対ロケーターをHTTPで取得する。
type HTTPFetcher struct {
	base        *url.URL
	client      *http.Client
	validator   URLValidator
	maxBodySize int64
}

// NewHTTPFetcher はHTTPFetcherを生成する。
// validatorがnilの場合は事前のURL検証を行わない。
func NewHTTPFetcher(baseURL string, client *http.Client, validator URLValidator, maxBodySize int64) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid content base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("content base URL must be absolute: %s", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &HTTPFetcher{
		base:        base,
		client:      client,
		validator:   validator,
		maxBodySize: maxBodySize,
	}, nil
}

// Fetch はロケーターをベースURLに対して解決し、GETで取得する。
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) (Response, error) {
	ref, err := url.Parse(locator)
	if err != nil {
		return Response{}, fmt.Errorf("invalid locator: %w", err)
	}
	target := f.base.ResolveReference(ref).String()

	if f.validator != nil {
		if err := f.validator.ValidateURL(target); err != nil {
			return Response{}, fmt.Errorf("blocked locator: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/markdown, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return Response{}, fmt.Errorf("payload exceeds %d bytes", f.maxBodySize)
	}

	return Response{Status: resp.StatusCode, Body: string(body)}, nil
}

// FSFetcher はfs.FSからロケーターのファイルを読み込む。
// 埋め込みのビュー断片の配信に使用する。
type FSFetcher struct {
	fsys fs.FS
}

// NewFSFetcher はFSFetcherを生成する。
func NewFSFetcher(fsys fs.FS) *FSFetcher {
	return &FSFetcher{fsys: fsys}
}

// Fetch はロケーターに対応するファイルを返す。存在しない場合は404を返す。
func (f *FSFetcher) Fetch(ctx context.Context, locator string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	name := path.Clean(strings.TrimPrefix(locator, "/"))
	if !fs.ValidPath(name) {
		return Response{Status: http.StatusNotFound}, nil
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Response{Status: http.StatusNotFound}, nil
		}
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: string(data)}, nil
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*FSFetcher)(nil)
)
