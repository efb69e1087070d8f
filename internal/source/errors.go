package source

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidPath 表示请求路径无法安全映射到归档内部（例如包含 ".."）。
	ErrInvalidPath = errors.New("invalid archive path")
	// ErrNotFound 是 NotFoundError 与上游 404 的哨兵值，便于 errors.Is 判断。
	ErrNotFound = errors.New("archive path not found")
	// ErrIsDirectory 表示 Open 的目标是目录。
	ErrIsDirectory = errors.New("archive path is a directory")
)

// UpstreamError 表示远端来源的非成功响应或传输失败。
type UpstreamError struct {
	URL     string
	Status  int
	Body    string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream timeout: %s", e.URL)
	case e.Status != 0:
		return fmt.Sprintf("upstream responded %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
	case e.Err != nil:
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	default:
		return "upstream request failed"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is 让上游 404 与本地 NotFoundError 共享 ErrNotFound 语义。
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Transient 报告该错误是否值得重试：传输失败、超时、429 与 5xx。
func (e *UpstreamError) Transient() bool {
	if e.Timeout {
		return true
	}
	if e.Status == 0 {
		return e.Err != nil
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// NotFoundError 表示本地来源中路径不存在或不是目录。
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archive path not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func invalidPath(raw string, reason string) error {
	return fmt.Errorf("%w: %s (%s)", ErrInvalidPath, raw, reason)
}
