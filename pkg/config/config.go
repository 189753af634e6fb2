package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Guardian  GuardianConfig  `mapstructure:"guardian"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ProvidersConfig struct {
	ModerationAPIKey string         `mapstructure:"moderation_api_key"`
	Rewrite          ProviderConfig `mapstructure:"rewrite"`
	Bias             ProviderConfig `mapstructure:"bias"`
}

// ProviderConfig selects the completion backend for a pipeline stage.
type ProviderConfig struct {
	Provider     string   `mapstructure:"provider"`
	Model        string   `mapstructure:"model"`
	APIKey       string   `mapstructure:"api_key"`
	MaxTokens    int64    `mapstructure:"max_tokens"`
	Temperature  float64  `mapstructure:"temperature"`
	Instructions []string `mapstructure:"instructions"`
}

type GuardianConfig struct {
	Defaults        safety.Config `mapstructure:"defaults"`
	DetectorTimeout time.Duration `mapstructure:"detector_timeout"`
	UnitCost        int64         `mapstructure:"unit_cost"`
	BiasTolerance   float64       `mapstructure:"bias_tolerance"`
	BiasPairs       []BiasPair    `mapstructure:"bias_pairs"`
}

type BiasPair struct {
	A string `mapstructure:"a"`
	B string `mapstructure:"b"`
}

type TelemetryConfig struct {
	Enabled bool                   `mapstructure:"enabled"`
	Kafka   map[string]interface{} `mapstructure:"kafka"`
}

var globalConfig Config

func Load(configPath string) error {
	setDefaults()
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}
	return nil
}

// setDefaults registers field level defaults so a partial config file or a
// missing one still yields a runnable configuration.
func setDefaults() {
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("providers.rewrite.provider", "openai")
	viper.SetDefault("providers.bias.provider", "openai")
	viper.SetDefault("guardian.defaults.on_flag", string(safety.OnFlagWarnOnly))
	viper.SetDefault("guardian.defaults.toxicity_threshold", safety.DefaultToxicityThreshold)
	viper.SetDefault("guardian.defaults.enable_bias_check", true)
	viper.SetDefault("guardian.defaults.enable_jailbreak_check", true)
	viper.SetDefault("guardian.defaults.enable_remediation", true)
	viper.SetDefault("guardian.detector_timeout", "10s")
	viper.SetDefault("guardian.unit_cost", 1)
	viper.SetDefault("guardian.bias_tolerance", 0.3)
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
		}
		// A missing file is not fatal, environment variables and defaults still apply.
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func GetConfig() *Config {
	return &globalConfig
}
