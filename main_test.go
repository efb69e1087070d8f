package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("ARCHIVE_BROWSER_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "-print-config"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
	if !opts.printConfig {
		t.Fatalf("-print-config 未生效")
	}
}

func TestParseCLIFlagsDefaultPath(t *testing.T) {
	t.Setenv("ARCHIVE_BROWSER_CONFIG", "")
	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("默认配置路径应为 config.toml，得到 %s", opts.configPath)
	}
	if _, err := parseCLIFlags([]string{"-unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrString())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrString(), "加载配置失败") {
		t.Fatalf("stderr 应包含错误信息，得到 %s", stdErrString())
	}
}

func TestRunPrintConfigOmitsToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "super-secret")
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), printConfig: true})
	if code != 0 {
		t.Fatalf("print-config 应成功退出，得到 %d", code)
	}
	out := stdOutString()
	if !strings.Contains(out, "Type: github") || !strings.Contains(out, "CacheTTL: 1h0m0s") {
		t.Fatalf("YAML 输出缺少字段: %s", out)
	}
	if strings.Contains(out, "super-secret") {
		t.Fatalf("输出不应包含令牌")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutString(), "archive-browser") {
		t.Fatalf("version 输出应包含 archive-browser 标识")
	}
}

func TestRunServesLocalArchive(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "submissions", "docs"), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	configPath := writeConfigFile(t, fmt.Sprintf(`
ListenPort = 5055
LogLevel = "error"

[Source]
Type = "local"
Root = "%s"
Watch = true
`, filepath.ToSlash(root)))

	var served []map[string]string
	prevListen := listen
	listen = func(app *fiber.App, port int) error {
		if port != 5055 {
			return fmt.Errorf("unexpected port %d", port)
		}
		resp, err := app.Test(httptest.NewRequest("GET", "/api/getContents", nil))
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(resp.Body)
		return json.Unmarshal(body, &served)
	}
	t.Cleanup(func() { listen = prevListen })

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath})
	if code != 0 {
		t.Fatalf("启动流程应成功，得到 %d (stderr=%s)", code, stdErrString())
	}
	if len(served) != 1 || served[0]["name"] != "docs" || served[0]["type"] != "dir" {
		t.Fatalf("unexpected listing: %v", served)
	}
}
