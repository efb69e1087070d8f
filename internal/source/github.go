package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/config"
)

const (
	githubAccept     = "application/vnd.github.v3+json"
	maxErrorBodySize = 64 * 1024
)

func init() {
	MustRegister(Registration{
		Type:        config.SourceTypeGitHub,
		Description: "GitHub repository contents API",
		New:         newGitHubSource,
	})
}

// githubContent 对应 contents API 返回的单个对象，列举时只消费 name/path/type。
type githubContent struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Type        string  `json:"type"`
	Sha         string  `json:"sha"`
	Size        int64   `json:"size"`
	URL         string  `json:"url"`
	HTMLURL     string  `json:"html_url"`
	GitURL      string  `json:"git_url"`
	DownloadURL *string `json:"download_url"`
}

// GitHubSource 通过 contents API 列举仓库目录。
type GitHubSource struct {
	endpoint string
	token    string
	client   *http.Client
	// download 不设整体超时，文件正文可以流式读取任意长时间；只限制等待响应头的时间。
	download      *http.Client
	headerTimeout time.Duration
	logger        *logrus.Logger
	retry         retryPolicy
}

func newGitHubSource(opts Options) (Source, error) {
	return NewGitHubSource(opts)
}

// NewGitHubSource 根据配置构造 github 来源；缺少令牌不会报错，但每次请求都会以 401 失败。
func NewGitHubSource(opts Options) (*GitHubSource, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Config.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("github source requires an endpoint")
	}

	client := opts.Client
	if client == nil {
		built, err := NewUpstreamClient(opts.Global, opts.Config)
		if err != nil {
			return nil, err
		}
		client = built
	}

	download := *client
	download.Timeout = 0
	headerTimeout := client.Timeout
	if headerTimeout <= 0 {
		headerTimeout = 10 * time.Second
	}

	logger := opts.logger()
	policy := newRetryPolicy(opts.Global.MaxRetries, opts.Global.InitialBackoff.DurationValue())
	policy.onRetry = func(attempt int, wait time.Duration, err error) {
		logger.WithFields(logrus.Fields{
			"action":  "upstream_retry",
			"source":  config.SourceTypeGitHub,
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
		}).Warn(err.Error())
	}

	return &GitHubSource{
		endpoint:      endpoint,
		token:         opts.Config.Token(),
		client:        client,
		download:      &download,
		headerTimeout: headerTimeout,
		logger:        logger,
		retry:         policy,
	}, nil
}

func (s *GitHubSource) Kind() string {
	return config.SourceTypeGitHub
}

// List 请求 <endpoint>/<locator>；单个对象会被包装为一元素数组。
func (s *GitHubSource) List(ctx context.Context, loc archive.Locator) ([]archive.Entry, error) {
	items, _, err := s.fetchContents(ctx, loc)
	if err != nil {
		return nil, err
	}
	entries := make([]archive.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, archive.Entry{
			Name: item.Name,
			Kind: archive.ParseKind(item.Type),
			Path: item.Path,
		})
	}
	return entries, nil
}

// Open 先取 contents 对象判断类型，再流式读取 download_url。
func (s *GitHubSource) Open(ctx context.Context, loc archive.Locator) (*File, error) {
	items, single, err := s.fetchContents(ctx, loc)
	if err != nil {
		return nil, err
	}
	if !single || len(items) != 1 || archive.ParseKind(items[0].Type).IsDir() {
		return nil, ErrIsDirectory
	}
	item := items[0]
	if item.DownloadURL == nil || *item.DownloadURL == "" {
		return nil, &NotFoundError{Path: item.Path}
	}

	var resp *http.Response
	err = s.retry.do(ctx, func(ctx context.Context) error {
		r, doErr := s.fetchDownload(ctx, *item.DownloadURL)
		if doErr != nil {
			return doErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	CopyHeaders(header, resp.Header)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = ContentTypeFor(item.Name)
	}
	return &File{
		Name:        item.Name,
		ContentType: contentType,
		Size:        resp.ContentLength,
		Header:      header,
		Body:        resp.Body,
	}, nil
}

// fetchDownload 在 headerTimeout 内等待响应头，之后正文读取只受调用方 ctx 约束；
// 关闭返回的 Body 会释放请求的 ctx。
func (s *GitHubSource) fetchDownload(ctx context.Context, target string) (*http.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(s.headerTimeout, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, err
	}
	s.authorize(req)

	resp, err := s.download.Do(req)
	expired := !timer.Stop()
	if err != nil {
		cancel()
		upstream := classifyTransportError(target, err)
		if expired && ctx.Err() == nil {
			upstream.Timeout = true
		}
		return nil, upstream
	}
	if expired {
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{URL: target, Timeout: true, Err: context.DeadlineExceeded}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, statusError(target, resp)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (s *GitHubSource) fetchContents(ctx context.Context, loc archive.Locator) ([]githubContent, bool, error) {
	target := s.endpoint + "/" + loc.String()
	if s.token == "" {
		return nil, false, &UpstreamError{
			URL:    target,
			Status: http.StatusUnauthorized,
			Body:   "missing credential for contents API",
		}
	}

	var (
		items  []githubContent
		single bool
	)
	err := s.retry.do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		s.authorize(req)
		req.Header.Set("Accept", githubAccept)

		resp, err := s.client.Do(req)
		if err != nil {
			return classifyTransportError(target, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return statusError(target, resp)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyTransportError(target, err)
		}
		items, single, err = decodeContents(body)
		if err != nil {
			return fmt.Errorf("decode contents from %s: %w", target, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.WithFields(logrus.Fields{
		"action":  "upstream_fetch",
		"source":  config.SourceTypeGitHub,
		"locator": loc.String(),
		"entries": len(items),
	}).Debug("contents fetched")
	return items, single, nil
}

func (s *GitHubSource) authorize(req *http.Request) {
	req.Header.Set("Authorization", "token "+s.token)
}

// decodeContents 兼容数组与单对象两种响应形态，第二个返回值表示是否为单对象。
func decodeContents(body []byte) ([]githubContent, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, errors.New("empty response body")
	}
	if trimmed[0] == '[' {
		var items []githubContent
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false, err
		}
		if items == nil {
			items = []githubContent{}
		}
		return items, false, nil
	}
	var item githubContent
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, false, err
	}
	return []githubContent{item}, true, nil
}

func statusError(target string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &UpstreamError{
		URL:    target,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

func classifyTransportError(target string, err error) *UpstreamError {
	upstream := &UpstreamError{URL: target, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		upstream.Timeout = true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		upstream.Timeout = true
	}
	return upstream
}
