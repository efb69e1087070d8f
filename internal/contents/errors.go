package contents

import (
	"errors"
	"fmt"

	"github.com/zukijourney/archive-browser/internal/archive"
)

// ErrOpenUnsupported 表示当前来源不支持读取文件正文。
var ErrOpenUnsupported = errors.New("source does not support opening files")

// UnavailableError 表示某个逻辑路径的目录列表无法获取，Err 保留来源返回的原始错误。
type UnavailableError struct {
	Path    string
	Locator archive.Locator
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("contents unavailable for %q: %v", e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
