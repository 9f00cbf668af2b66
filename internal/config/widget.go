package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const widgetEnvPrefix = "ZCHAT"

// WidgetConfig 描述终端聊天组件的配置。
type WidgetConfig struct {
	Endpoint   string
	CookieFile string
	Timeout    time.Duration
	LogLevel   zerolog.Level
	LogFile    string
	Plain      bool
}

// RegisterWidgetFlags 在 flagSet 上注册终端组件的命令行参数。
func RegisterWidgetFlags(flagSet *pflag.FlagSet) {
	flagSet.String("config", "", "optional YAML config file")
	flagSet.String("endpoint", "http://localhost:8080/api/chat", "completion endpoint URL")
	flagSet.String("cookie-file", "", "file holding the session identifier (default: user config dir)")
	flagSet.Duration("timeout", 60*time.Second, "timeout for one completion round trip")
	flagSet.String("log-level", "warn", "log level: debug, info, warn, error")
	flagSet.String("log-file", "", "write logs to this file instead of discarding them in the TUI")
	flagSet.Bool("plain", false, "line mode even when stdin is a terminal")
}

// LoadWidget 合并命令行参数、ZCHAT_* 环境变量与可选配置文件。
// 命令行参数优先于环境变量，环境变量优先于配置文件。
func LoadWidget(flagSet *pflag.FlagSet) (WidgetConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(widgetEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flagSet); err != nil {
		return WidgetConfig{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return WidgetConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	level, err := ParseLogLevel(v.GetString("log-level"))
	if err != nil {
		return WidgetConfig{}, err
	}

	cookieFile := v.GetString("cookie-file")
	if cookieFile == "" {
		cookieFile, err = defaultCookieFile()
		if err != nil {
			return WidgetConfig{}, err
		}
	}

	endpoint := strings.TrimSpace(v.GetString("endpoint"))
	if endpoint == "" {
		return WidgetConfig{}, fmt.Errorf("endpoint must not be empty")
	}

	return WidgetConfig{
		Endpoint:   endpoint,
		CookieFile: cookieFile,
		Timeout:    v.GetDuration("timeout"),
		LogLevel:   level,
		LogFile:    v.GetString("log-file"),
		Plain:      v.GetBool("plain"),
	}, nil
}

func defaultCookieFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "z-chat", "cookies.yaml"), nil
}
