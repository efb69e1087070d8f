package archive

import (
	"net/url"
	"strings"
)

// DefaultBase 是归档默认的顶层目录。
const DefaultBase = "submissions"

// Locator 是逻辑路径对应的上游地址：带 base 前缀，且每个路径段独立做百分号编码。
type Locator string

func (l Locator) String() string {
	return string(l)
}

// Segments 将 Locator 解码为原始路径段，解码失败时返回错误。
func (l Locator) Segments() ([]string, error) {
	raw := strings.Split(string(l), "/")
	out := make([]string, len(raw))
	for i, seg := range raw {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}

// HasPrefix reports whether loc addresses prefix itself or something below it.
func (l Locator) HasPrefix(prefix Locator) bool {
	if l == prefix {
		return true
	}
	return strings.HasPrefix(string(l), string(prefix)+"/")
}

// Normalizer 负责逻辑路径 ↔ Locator 的转换，base 为空时退回 DefaultBase。
type Normalizer struct {
	base string
}

// NewNormalizer 构造 Normalizer，会去掉 base 两侧多余的斜杠。
func NewNormalizer(base string) Normalizer {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBase
	}
	return Normalizer{base: base}
}

// Base 返回当前生效的 base 目录名。
func (n Normalizer) Base() string {
	if n.base == "" {
		return DefaultBase
	}
	return n.base
}

// Root 返回归档根目录对应的 Locator。
func (n Normalizer) Root() Locator {
	return n.ToLocator("")
}

// ToLocator 将逻辑路径转换为 Locator。空路径对应 base 本身；否则逐段编码后以 "/" 重新拼接，
// 分隔符本身不参与编码。
func (n Normalizer) ToLocator(logicalPath string) Locator {
	base := n.Base()
	if logicalPath == "" {
		return Locator(base)
	}
	full := base + "/" + logicalPath
	segments := strings.Split(full, "/")
	for i, seg := range segments {
		segments[i] = escapeSegment(seg)
	}
	return Locator(strings.Join(segments, "/"))
}

// ToLogicalPath 去掉上游路径中的 "base/" 前缀；前缀不存在时原样返回。
func (n Normalizer) ToLogicalPath(entryPath string) string {
	base := n.Base()
	if entryPath == base {
		return ""
	}
	return strings.TrimPrefix(entryPath, base+"/")
}

const upperHex = "0123456789ABCDEF"

// escapeSegment 按 encodeURIComponent 的规则编码单个路径段：
// 除字母、数字与 -_.!~*'() 外的每个 UTF-8 字节都编码为 %XX。
// url.PathEscape 会保留 :@&=+$，与上游期望的编码不一致。
func escapeSegment(seg string) string {
	var b strings.Builder
	b.Grow(len(seg))
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if unreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}
	return b.String()
}

func unreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
