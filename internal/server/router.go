package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_archive_request_id"

// NewApp builds a Fiber application with request ID, recover and access log
// middleware. Routes are attached afterwards by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(requestContextMiddleware())
	app.Use(recover.New())
	app.Use(accessLogMiddleware(opts.Logger))

	return app, nil
}

// requestContextMiddleware 为每个请求生成 ID，并写入响应头 X-Request-ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// accessLogMiddleware 记录每个请求的结果；诊断接口只在 debug 级别输出。
func accessLogMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		path := string(c.Request().URI().Path())
		entry := logger.WithFields(logrus.Fields{
			"action":     "http",
			"method":     c.Method(),
			"path":       path,
			"status":     status,
			"elapsed_ms": time.Since(started).Milliseconds(),
			"request_id": RequestID(c),
		})
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Warn("request_failed")
		case isDiagnosticsPath(path):
			entry.Debug("request_completed")
		default:
			entry.Info("request_completed")
		}
		return err
	}
}

// errorHandler 将未处理的错误渲染为 {"error": "..."}，避免 Fiber 默认的纯文本响应。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal_error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		} else {
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "http",
				"request_id": RequestID(c),
			}).Error("unhandled_error")
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
