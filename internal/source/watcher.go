package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
)

// WatcherOptions 描述监听范围与失效目标。
type WatcherOptions struct {
	Root        string
	Normalizer  archive.Normalizer
	Invalidator Invalidator
	Logger      *logrus.Logger
}

// Watcher 监听 Root/<base> 下所有目录，目录内任何变化都会失效该目录的缓存列表。
type Watcher struct {
	root       string
	normalizer archive.Normalizer
	inv        Invalidator
	logger     *logrus.Logger
	fsw        *fsnotify.Watcher

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher 递归注册目录并启动事件循环；ctx 结束或 Close 时停止。
func NewWatcher(ctx context.Context, opts WatcherOptions) (*Watcher, error) {
	if opts.Invalidator == nil {
		return nil, errors.New("watcher requires an invalidator")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		root:       opts.Root,
		normalizer: opts.Normalizer,
		inv:        opts.Invalidator,
		logger:     logger,
		fsw:        fsw,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	base := filepath.Join(opts.Root, filepath.FromSlash(opts.Normalizer.Base()))
	if err := w.addTree(base); err != nil {
		cancel()
		_ = fsw.Close()
		return nil, err
	}

	go w.loop(loopCtx)
	return w, nil
}

// Close 停止监听并等待事件循环退出。
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		err = w.fsw.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithFields(logrus.Fields{"action": "watch"}).Warn(err.Error())
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	parent, ok := w.locatorFor(filepath.Dir(event.Name))
	if !ok {
		return
	}
	w.inv.Invalidate(parent)

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.WithError(err).WithField("action", "watch").Warn("watch_add_failed")
			}
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if loc, ok := w.locatorFor(event.Name); ok {
			w.inv.InvalidatePrefix(loc)
		}
	}

	w.logger.WithFields(logrus.Fields{
		"action":  "watch_invalidate",
		"locator": parent.String(),
		"op":      event.Op.String(),
	}).Debug("listing invalidated")
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(p)
	})
}

// locatorFor 将 Root 下的绝对目录转换为缓存使用的 Locator；base 之外的路径返回 false。
func (w *Watcher) locatorFor(dir string) (archive.Locator, bool) {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	base := w.normalizer.Base()
	if rel != base && !strings.HasPrefix(rel, base+"/") {
		return "", false
	}
	return w.normalizer.ToLocator(w.normalizer.ToLogicalPath(rel)), true
}
