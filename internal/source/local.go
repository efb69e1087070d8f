package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/config"
)

func init() {
	MustRegister(Registration{
		Type:        config.SourceTypeLocal,
		Description: "Local filesystem directory tree",
		New:         newLocalSource,
	})
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".txt":  "text/plain",
	".html": "text/html",
	".json": "application/json",
}

// ContentTypeFor 按扩展名推断文件类型，未知扩展名返回 application/octet-stream。
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// LocalSource 枚举 Root 下的目录；Locator 解码后的路径必须留在 Root 之内。
type LocalSource struct {
	root       string
	normalizer archive.Normalizer
	logger     *logrus.Logger
}

func newLocalSource(opts Options) (Source, error) {
	return NewLocalSource(opts)
}

// NewLocalSource 校验 Root 存在且为目录；base 目录本身缺失时延迟到 List 报 NotFound。
func NewLocalSource(opts Options) (*LocalSource, error) {
	if strings.TrimSpace(opts.Config.Root) == "" {
		return nil, errors.New("local source requires a root directory")
	}
	root, err := filepath.Abs(opts.Config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	normalizer := opts.Normalizer
	if normalizer == (archive.Normalizer{}) {
		normalizer = archive.NewNormalizer(opts.Config.BaseFolder)
	}

	return &LocalSource{
		root:       root,
		normalizer: normalizer,
		logger:     opts.logger(),
	}, nil
}

func (s *LocalSource) Kind() string {
	return config.SourceTypeLocal
}

// Root 返回解析后的绝对根目录。
func (s *LocalSource) Root() string {
	return s.root
}

func (s *LocalSource) List(ctx context.Context, loc archive.Locator) ([]archive.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, segments, err := s.resolve(loc)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: strings.Join(segments, "/")}
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, &NotFoundError{Path: strings.Join(segments, "/")}
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: strings.Join(segments, "/")}
		}
		return nil, err
	}

	prefix := strings.Join(segments, "/")
	entries := make([]archive.Entry, 0, len(items))
	for _, item := range items {
		kind := archive.KindFile
		if item.IsDir() {
			kind = archive.KindDir
		}
		entries = append(entries, archive.Entry{
			Name: item.Name(),
			Kind: kind,
			Path: prefix + "/" + item.Name(),
		})
	}
	return entries, nil
}

func (s *LocalSource) Open(ctx context.Context, loc archive.Locator) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, segments, err := s.resolve(loc)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: strings.Join(segments, "/")}
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrIsDirectory
	}
	if !info.Mode().IsRegular() {
		return nil, &NotFoundError{Path: strings.Join(segments, "/")}
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        info.Name(),
		ContentType: ContentTypeFor(info.Name()),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Body:        f,
	}, nil
}

// Watch 为 Root/<base> 下的目录树注册 fsnotify 监听。
func (s *LocalSource) Watch(ctx context.Context, inv Invalidator) (io.Closer, error) {
	return NewWatcher(ctx, WatcherOptions{
		Root:        s.root,
		Normalizer:  s.normalizer,
		Invalidator: inv,
		Logger:      s.logger,
	})
}

// resolve 将 Locator 映射为 Root 下的绝对路径，拒绝任何越界或含糊的路径段。
func (s *LocalSource) resolve(loc archive.Locator) (string, []string, error) {
	raw, err := loc.Segments()
	if err != nil {
		return "", nil, invalidPath(loc.String(), "malformed escape")
	}

	segments := make([]string, 0, len(raw))
	for i, seg := range raw {
		switch {
		case seg == "":
			if i == len(raw)-1 && i > 0 {
				continue
			}
			return "", nil, invalidPath(loc.String(), "empty segment")
		case seg == "." || seg == "..":
			return "", nil, invalidPath(loc.String(), "relative segment")
		case strings.ContainsAny(seg, "/\\\x00"):
			return "", nil, invalidPath(loc.String(), "illegal character")
		}
		segments = append(segments, seg)
	}

	full := filepath.Join(append([]string{s.root}, segments...)...)
	if !s.within(full) {
		return "", nil, invalidPath(loc.String(), "outside archive root")
	}
	if resolved, err := filepath.EvalSymlinks(full); err == nil && !s.within(resolved) {
		return "", nil, invalidPath(loc.String(), "symlink escapes archive root")
	}
	return full, segments, nil
}

func (s *LocalSource) within(target string) bool {
	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
