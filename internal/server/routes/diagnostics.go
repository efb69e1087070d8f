package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/zukijourney/archive-browser/internal/contents"
	"github.com/zukijourney/archive-browser/internal/source"
	"github.com/zukijourney/archive-browser/internal/version"
)

type sourcePayload struct {
	Registered []string `json:"registered"`
	contents.Description
}

// RegisterDiagnosticsRoutes 暴露 /-/ 下的运维接口：健康检查、来源信息与缓存统计。
func RegisterDiagnosticsRoutes(app *fiber.App, resolver *contents.Resolver) {
	if app == nil || resolver == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": version.Full()})
	})

	app.Get("/-/source", func(c fiber.Ctx) error {
		return c.JSON(sourcePayload{
			Registered:  source.Types(),
			Description: resolver.Describe(),
		})
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(resolver.Cache().Stats())
	})

	// 带 path 参数时只失效该目录及其子目录，否则清空全部缓存。
	app.Delete("/-/cache", func(c fiber.Ctx) error {
		store := resolver.Cache()
		if path := c.Query("path"); path != "" {
			prefix := resolver.Normalizer().ToLocator(path)
			return c.JSON(fiber.Map{"purged": store.InvalidatePrefix(prefix), "prefix": prefix.String()})
		}
		return c.JSON(fiber.Map{"purged": store.Purge()})
	})
}
