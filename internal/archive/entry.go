package archive

import (
	"fmt"
	"strings"
)

// Kind 区分文件与目录，取值与 GitHub contents API 的 type 字段一致。
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// ParseKind 将上游 type 字段映射为 Kind；symlink/submodule 等非目录类型视为文件。
func ParseKind(raw string) Kind {
	if strings.EqualFold(strings.TrimSpace(raw), string(KindDir)) {
		return KindDir
	}
	return KindFile
}

// IsDir reports whether the entry is a directory.
func (k Kind) IsDir() bool {
	return k == KindDir
}

// Entry 表示一次目录列举中的单个条目。Source 返回的 Path 是包含 base 前缀的完整路径，
// 经 Resolver 格式化后 Path 变为相对归档根目录的逻辑路径。
type Entry struct {
	Name string `json:"name"`
	Kind Kind   `json:"type"`
	Path string `json:"path"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s(%s)", e.Path, e.Kind)
}
