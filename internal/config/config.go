package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/prite36/smart-irrigation/internal/decision"
)

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type ActuatorConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Address pre-registers the pump until a device reports its own.
	Address string `mapstructure:"address"`
}

type IrrigationConfig struct {
	StopPumpOnRain bool `mapstructure:"stop_pump_on_rain"`
}

type ScheduleConfig struct {
	// AnalyzeInterval enables the periodic analysis poll when non-zero.
	AnalyzeInterval time.Duration `mapstructure:"analyze_interval"`
	Timezone        string        `mapstructure:"timezone"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
}

type SlackConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"`
}

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type Config struct {
	Server     ServerConfig        `mapstructure:"server"`
	Actuator   ActuatorConfig      `mapstructure:"actuator"`
	Thresholds decision.Thresholds `mapstructure:"thresholds"`
	Irrigation IrrigationConfig    `mapstructure:"irrigation"`
	Schedule   ScheduleConfig      `mapstructure:"schedule"`
	MQTT       MQTTConfig          `mapstructure:"mqtt"`
	Database   DatabaseConfig      `mapstructure:"database"`
	Slack      SlackConfig         `mapstructure:"slack"`
	Influx     InfluxConfig        `mapstructure:"influx"`
}

var envBindings = map[string]string{
	"server.port":         "PORT",
	"server.cors_origins": "CORS_ORIGINS",

	"actuator.timeout": "ACTUATOR_TIMEOUT",
	"actuator.address": "ACTUATOR_ADDRESS",

	"thresholds.soil_moisture_min":      "SOIL_MOISTURE_MIN",
	"thresholds.soil_moisture_critical": "SOIL_MOISTURE_CRITICAL",
	"thresholds.water_level_min":        "WATER_LEVEL_MIN",
	"thresholds.temperature_max":        "TEMPERATURE_MAX",
	"thresholds.humidity_min":           "HUMIDITY_MIN",

	"irrigation.stop_pump_on_rain": "STOP_PUMP_ON_RAIN",

	"schedule.analyze_interval": "ANALYZE_INTERVAL",
	"schedule.timezone":         "SCHEDULE_TIMEZONE",

	"mqtt.broker":       "MQTT_BROKER",
	"mqtt.client_id":    "MQTT_CLIENT_ID",
	"mqtt.username":     "MQTT_USERNAME",
	"mqtt.password":     "MQTT_PASSWORD",
	"mqtt.topic_prefix": "MQTT_TOPIC_PREFIX",

	"database.driver":   "DB_DRIVER",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.dbname":   "DB_NAME",
	"database.sslmode":  "DB_SSLMODE",
	"database.path":     "DB_PATH",

	"slack.bot_token":  "SLACK_BOT_TOKEN",
	"slack.channel_id": "SLACK_CHANNEL_ID",

	"influx.url":    "INFLUX_URL",
	"influx.token":  "INFLUX_TOKEN",
	"influx.org":    "INFLUX_ORG",
	"influx.bucket": "INFLUX_BUCKET",
}

func setDefaults(v *viper.Viper) {
	t := decision.DefaultThresholds()

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("actuator.timeout", 10*time.Second)
	v.SetDefault("thresholds.soil_moisture_min", t.SoilMoistureMin)
	v.SetDefault("thresholds.soil_moisture_critical", t.SoilMoistureCritical)
	v.SetDefault("thresholds.water_level_min", t.WaterLevelMin)
	v.SetDefault("thresholds.temperature_max", t.TemperatureMax)
	v.SetDefault("thresholds.humidity_min", t.HumidityMin)
	v.SetDefault("irrigation.stop_pump_on_rain", false)
	v.SetDefault("schedule.timezone", "Asia/Bangkok")
	v.SetDefault("mqtt.client_id", "smart-irrigation")
	v.SetDefault("mqtt.topic_prefix", "irrigation")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "irrigation.db")
}

func LoadConfig() (*Config, error) {
	log.Println("--- Starting Configuration Loading ---")
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}

	if env == "local" {
		v.SetConfigFile(".env.local")
		v.SetConfigType("env")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file .env.local: %w", err)
			}
			log.Println("[INFO] .env.local not found, relying on environment variables")
		} else {
			log.Printf("[INFO] Loaded configuration from %s", v.ConfigFileUsed())
		}
	} else {
		log.Printf("[INFO] Skipping .env file loading because APP_ENV is '%s'", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Printf("[INFO] Configuration loaded (port=%d, mqtt=%t, database=%s, slack=%t, influx=%t)",
		config.Server.Port, config.MQTT.Broker != "", config.Database.Driver,
		config.Slack.BotToken != "", config.Influx.URL != "")
	return &config, nil
}

func (cfg *Config) Validate() error {
	switch cfg.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Schedule.AnalyzeInterval < 0 {
		return fmt.Errorf("schedule.analyze_interval must not be negative")
	}
	if cfg.Thresholds.SoilMoistureCritical > cfg.Thresholds.SoilMoistureMin {
		return fmt.Errorf("thresholds.soil_moisture_critical must not exceed soil_moisture_min")
	}
	return nil
}

// DSN returns the connection string for the configured database driver.
func (cfg *Config) DSN() string {
	if cfg.Database.Driver == "sqlite" {
		return cfg.Database.Path
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)
}
