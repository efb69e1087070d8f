package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/cache"
	"github.com/zukijourney/archive-browser/internal/config"
	"github.com/zukijourney/archive-browser/internal/contents"
	"github.com/zukijourney/archive-browser/internal/logging"
	"github.com/zukijourney/archive-browser/internal/server"
	"github.com/zukijourney/archive-browser/internal/server/routes"
	"github.com/zukijourney/archive-browser/internal/source"
	"github.com/zukijourney/archive-browser/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	printConfig bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// listen 启动 HTTP 服务，测试中替换以避免真正监听端口。
var listen = func(app *fiber.App, port int) error {
	return app.Listen(fmt.Sprintf(":%d", port))
}

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	if opts.printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintf(stdErr, "输出配置失败: %v\n", err)
			return 1
		}
		_, _ = stdOut.Write(out)
		return 0
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["source"] = cfg.Source.Type
		fields["credentials"] = cfg.Source.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 来源 → 目录缓存 → Resolver → Fiber server，
	// 所有请求共享同一份缓存实例。
	resolver, stopWatch, err := buildResolver(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化目录来源失败: %v\n", err)
		return 1
	}
	if stopWatch != nil {
		defer func() { _ = stopWatch() }()
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["source"] = cfg.Source.Type
	fields["base_folder"] = resolver.Normalizer().Base()
	fields["listen_port"] = cfg.Global.ListenPort
	fields["credentials"] = cfg.Source.AuthMode()
	fields["cache_ttl"] = cfg.Global.CacheTTL.DurationValue().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if cfg.Source.Type == config.SourceTypeGitHub && !cfg.Source.HasCredentials() {
		logger.WithFields(logrus.Fields{
			"action":    "startup",
			"token_env": cfg.Source.TokenEnv,
		}).Warn("未找到访问令牌，目录请求将失败")
	}

	if err := startHTTPServer(cfg, resolver, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildResolver 按配置选择来源并组装缓存；本地来源开启 Watch 时返回停止监听的函数。
func buildResolver(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*contents.Resolver, func() error, error) {
	normalizer := archive.NewNormalizer(cfg.Source.BaseFolder)

	src, err := source.New(source.Options{
		Config:     cfg.Source,
		Global:     cfg.Global,
		Normalizer: normalizer,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	store := cache.NewStore(cache.Options{
		TTL:        cfg.Global.CacheTTL.DurationValue(),
		MaxEntries: cfg.Global.MaxCacheEntries,
	})

	resolver, err := contents.NewResolver(contents.Options{
		Normalizer: normalizer,
		Cache:      store,
		Source:     src,
		Logger:     logger,
		Timeout:    cfg.Global.UpstreamTimeout.DurationValue(),
		TTL:        cfg.Global.CacheTTL.DurationValue(),
	})
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Source.Watch {
		return resolver, nil, nil
	}
	stop, supported, err := resolver.Watch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("启动目录监听失败: %w", err)
	}
	if !supported {
		logger.WithFields(logrus.Fields{
			"action": "watch",
			"source": src.Kind(),
		}).Warn("当前来源不支持目录监听，已忽略 Watch")
	}
	return resolver, stop, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag  string
		checkOnly   bool
		printConfig bool
		showVer     bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ARCHIVE_BROWSER_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&printConfig, "print-config", false, "以 YAML 输出生效配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ARCHIVE_BROWSER_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		printConfig: printConfig,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, resolver *contents.Resolver, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterContentsRoutes(app, resolver, logger)
	routes.RegisterDiagnosticsRoutes(app, resolver)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return listen(app, port)
}
