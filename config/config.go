package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"slopsbot/model"
	"slopsbot/utils"
)

// DefaultConfigFile is read when no --config flag is given. It is optional.
const DefaultConfigFile = "data/config.yaml"

func setDefaults(v *viper.Viper) {
	v.SetDefault("token", "")
	v.SetDefault("credentials_file", "auth.json")
	v.SetDefault("log_channel_id", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/slops.db")
	v.SetDefault("store.mongo_uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("store.mongo_database", "slops")

	v.SetDefault("roles.red", "Recently made a really bad pun, jape, hijink or caper.")
	v.SetDefault("roles.yellow", "Recently actually made an average pun, jape, hijink or caper.")
	v.SetDefault("roles.green", "Recently actually made a good pun, jape, hijink or caper.")

	v.SetDefault("threshold", 5)
	v.SetDefault("scan_limit", 100)
	v.SetDefault("scan_concurrency", 8)
	v.SetDefault("reaction_stagger", 50*time.Millisecond)
	v.SetDefault("reactor_fetch_rate", 5.0)
	v.SetDefault("reactor_fetch_burst", 5)
	v.SetDefault("sweep_interval", 15*time.Minute)
	v.SetDefault("grant_ttl", 24*time.Hour)
	v.SetDefault("self_react_attachment", "data/self_react.png")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.channel_id", "")
	v.SetDefault("schedule.night_name", "")
	v.SetDefault("schedule.day_name", "")
	v.SetDefault("schedule.night_start_hour", 0)
	v.SetDefault("schedule.day_start_hour", 7)
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("schedule.interval", 5*time.Minute)
}

// Load loads the configuration from .env, an optional config file and environment variables.
// An empty path means DefaultConfigFile; a missing default file is not an error.
func Load(path string) (*model.Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, relying on environment variables")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SLOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The unprefixed names the bot has always used.
	if err := v.BindEnv("token", "SLOPS_TOKEN", "BOT_TOKEN"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("log_channel_id", "SLOPS_LOG_CHANNEL_ID", "LOG_CHANNEL_ID"); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		log.WithField("path", path).Debug("Config file not found, using defaults")
	}

	cfg := &model.Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.BotToken == "" {
		token, err := loadCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		cfg.BotToken = token
	}

	if cfg.LogChannelID == "" {
		log.Warn("LOG_CHANNEL_ID not set, channel logging will be disabled")
	}
	return cfg, nil
}

// loadCredentials reads the token from a JSON credentials file such as {"token": "..."}.
// A missing file yields an empty token so validation can report it.
func loadCredentials(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	return v.GetString("token"), nil
}

// decodeHook lets duration keys use day units ("1d") on top of the usual Go syntax.
func decodeHook() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return mapstructure.ComposeDecodeHookFunc(
		func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
			if f.Kind() != reflect.String || t != durationType {
				return data, nil
			}
			return utils.ParseDuration(data.(string))
		},
		mapstructure.StringToSliceHookFunc(","),
	)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
