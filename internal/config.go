package internal

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// FallbackPorts keep-alive 主埠無法使用時依序嘗試
var FallbackPorts = []int{8081, 5000}

var validate = validator.New()

// Config 程式配置（環境變數，開發時可放在 .env）
type Config struct {
	BotToken      string        `env:"BOT_TOKEN"`
	GuildID       string        `env:"GUILD_ID"`
	Port          int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel      string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat     string        `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=1m" validate:"min=1s"`
}

// LoadConfig 讀取配置
//
// .env 不存在時忽略；BOT_TOKEN 缺少時回傳 ErrConfigMissing，
// 呼叫端應在進入排程迴圈前結束程序。
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN: %w", ErrConfigMissing)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Ports keep-alive 依序嘗試的埠（去除重複）
func (c *Config) Ports() []int {
	return lo.Uniq(append([]int{c.Port}, FallbackPorts...))
}
