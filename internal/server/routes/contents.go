package routes

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/contents"
	"github.com/zukijourney/archive-browser/internal/server"
	"github.com/zukijourney/archive-browser/internal/source"
)

// maxInlineFileSize 限制以 JSON 文本形式返回的文件大小。
const maxInlineFileSize = 8 << 20

// relayedFileHeaders 是读取文件时透传给客户端的上游头。
var relayedFileHeaders = []string{"ETag", "Last-Modified", "Cache-Control"}

type submissionPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Path  string `json:"path"`
}

type folderItemPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RegisterContentsRoutes 挂载目录浏览接口。
func RegisterContentsRoutes(app *fiber.App, resolver *contents.Resolver, logger *logrus.Logger) {
	if app == nil || resolver == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/api/getContents", func(c fiber.Ctx) error {
		entries, err := resolver.ListContents(requestContext(c), c.Query("path"))
		if err != nil {
			logFailure(logger, c, "get_contents", err)
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": "Error fetching directory contents"})
		}
		return c.JSON(entries)
	})

	app.Get("/api/submissions", func(c fiber.Ctx) error {
		entries, err := resolver.ListContents(requestContext(c), "")
		if err != nil {
			logFailure(logger, c, "list_submissions", err)
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": "Error fetching submissions"})
		}
		payload := make([]submissionPayload, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, submissionPayload{
				ID:    base64.StdEncoding.EncodeToString([]byte(entry.Name)),
				Title: entry.Name,
				Type:  folderOrFile(entry.Kind),
				Path:  "/" + entry.Name,
			})
		}
		return c.JSON(payload)
	})

	app.Get("/submission/*", func(c fiber.Ctx) error {
		logicalPath, err := url.PathUnescape(strings.Trim(c.Params("*"), "/"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}
		return serveSubmission(c, resolver, logger, logicalPath)
	})
}

// serveSubmission 通过父目录的缓存列表判断目标类型：目录直接走 ListContents，
// 只有文件才会触发一次 Open 回源。
func serveSubmission(c fiber.Ctx, resolver *contents.Resolver, logger *logrus.Logger, logicalPath string) error {
	ctx := requestContext(c)

	if logicalPath != "" {
		entry, err := lookupEntry(ctx, resolver, logicalPath)
		if err != nil {
			if isMissing(err) {
				return c.Status(fiber.StatusNotFound).SendString("Not found")
			}
			logFailure(logger, c, "lookup_submission", err)
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": "Error fetching directory contents"})
		}
		if !entry.Kind.IsDir() {
			return openSubmission(c, resolver, logger, logicalPath)
		}
	}

	entries, err := resolver.ListContents(ctx, logicalPath)
	if err != nil {
		if isMissing(err) {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}
		logFailure(logger, c, "list_submission", err)
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": "Error fetching directory contents"})
	}

	items := make([]folderItemPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, folderItemPayload{Name: entry.Name, Type: folderOrFile(entry.Kind)})
	}
	return c.JSON(fiber.Map{"type": "folder", "items": items})
}

// lookupEntry 在父目录列表中查找 logicalPath 对应的条目，找不到时返回 ErrNotFound。
func lookupEntry(ctx context.Context, resolver *contents.Resolver, logicalPath string) (archive.Entry, error) {
	parent, name := path.Split(logicalPath)
	siblings, err := resolver.ListContents(ctx, strings.TrimSuffix(parent, "/"))
	if err != nil {
		return archive.Entry{}, err
	}
	for _, entry := range siblings {
		if entry.Name == name {
			return entry, nil
		}
	}
	return archive.Entry{}, &source.NotFoundError{Path: logicalPath}
}

func openSubmission(c fiber.Ctx, resolver *contents.Resolver, logger *logrus.Logger, logicalPath string) error {
	file, err := resolver.Open(requestContext(c), logicalPath)
	switch {
	case err == nil:
		return sendFile(c, file)
	case isMissing(err), errors.Is(err, contents.ErrOpenUnsupported), errors.Is(err, source.ErrIsDirectory):
		return c.Status(fiber.StatusNotFound).SendString("Not found")
	default:
		logFailure(logger, c, "open_submission", err)
		return c.Status(statusFor(err)).SendString(fiber.ErrBadGateway.Message)
	}
}

func sendFile(c fiber.Ctx, file *source.File) error {
	defer file.Body.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = source.ContentTypeFor(file.Name)
	}
	for _, key := range relayedFileHeaders {
		if value := file.Header.Get(key); value != "" {
			c.Set(key, value)
		}
	}

	if strings.HasPrefix(contentType, "image/") {
		body, err := io.ReadAll(file.Body)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "read file failed")
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(body)
	}

	body, err := io.ReadAll(io.LimitReader(file.Body, maxInlineFileSize+1))
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "read file failed")
	}
	if len(body) > maxInlineFileSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file too large to inline")
	}
	return c.JSON(fiber.Map{"type": "file", "content": strings.ToValidUTF8(string(body), "\uFFFD")})
}

func folderOrFile(kind archive.Kind) string {
	if kind.IsDir() {
		return "folder"
	}
	return "file"
}

func isMissing(err error) bool {
	return errors.Is(err, source.ErrNotFound) || errors.Is(err, source.ErrInvalidPath)
}

// statusFor 集中维护错误到 HTTP 状态码的映射。
func statusFor(err error) int {
	var upstream *source.UpstreamError
	switch {
	case errors.Is(err, source.ErrInvalidPath):
		return fiber.StatusBadRequest
	case errors.Is(err, source.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &upstream) && upstream.Timeout, errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func logFailure(logger *logrus.Logger, c fiber.Ctx, action string, err error) {
	fields := logrus.Fields{
		"action":     action,
		"request_id": server.RequestID(c),
		"status":     statusFor(err),
	}
	var unavailable *contents.UnavailableError
	if errors.As(err, &unavailable) {
		fields["path"] = unavailable.Path
		fields["locator"] = unavailable.Locator.String()
	}
	logger.WithFields(fields).WithError(err).Warn("request_failed")
}
