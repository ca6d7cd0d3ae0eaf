package model

import (
	"fmt"
	"time"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// RoleNames maps each achievement category to the display name of its guild role.
type RoleNames struct {
	Red    string `mapstructure:"red"`
	Yellow string `mapstructure:"yellow"`
	Green  string `mapstructure:"green"`
}

// For returns the role name configured for c, or "" for non-role categories.
func (r RoleNames) For(c Category) string {
	switch c {
	case CategoryRed:
		return r.Red
	case CategoryYellow:
		return r.Yellow
	case CategoryGreen:
		return r.Green
	}
	return ""
}

// ScheduleConfig drives the day/night channel rename.
type ScheduleConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ChannelID      string        `mapstructure:"channel_id"`
	NightName      string        `mapstructure:"night_name"`
	DayName        string        `mapstructure:"day_name"`
	NightStartHour int           `mapstructure:"night_start_hour"`
	DayStartHour   int           `mapstructure:"day_start_hour"`
	Timezone       string        `mapstructure:"timezone"`
	Interval       time.Duration `mapstructure:"interval"`
}

// Config 存储应用程序的配置
type Config struct {
	BotToken        string         `mapstructure:"token"`
	CredentialsFile string         `mapstructure:"credentials_file"`
	LogChannelID    string         `mapstructure:"log_channel_id"`
	LogLevel        string         `mapstructure:"log_level"`
	Store           StoreConfig    `mapstructure:"store"`
	Roles           RoleNames      `mapstructure:"roles"`
	Schedule        ScheduleConfig `mapstructure:"schedule"`

	Threshold           int           `mapstructure:"threshold"`
	ScanLimit           int           `mapstructure:"scan_limit"`
	ScanConcurrency     int           `mapstructure:"scan_concurrency"`
	ReactionStagger     time.Duration `mapstructure:"reaction_stagger"`
	ReactorFetchRate    float64       `mapstructure:"reactor_fetch_rate"`
	ReactorFetchBurst   int           `mapstructure:"reactor_fetch_burst"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	GrantTTL            time.Duration `mapstructure:"grant_ttl"`
	SelfReactAttachment string        `mapstructure:"self_react_attachment"`
}

// Validate reports the first configuration problem that would prevent the bot from running.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token is not set (BOT_TOKEN or %s)", c.CredentialsFile)
	}
	if c.Roles.Red == "" || c.Roles.Yellow == "" || c.Roles.Green == "" {
		return fmt.Errorf("all three achievement role names must be configured")
	}
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	if c.ScanLimit < 1 || c.ScanLimit > 100 {
		return fmt.Errorf("scan_limit must be between 1 and 100, got %d", c.ScanLimit)
	}
	if c.GrantTTL <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("grant_ttl and sweep_interval must be positive")
	}
	switch c.Store.Driver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Schedule.Enabled {
		if c.Schedule.ChannelID == "" || c.Schedule.NightName == "" {
			return fmt.Errorf("schedule requires channel_id and night_name")
		}
		if c.Schedule.NightStartHour < 0 || c.Schedule.NightStartHour > 23 || c.Schedule.DayStartHour < 0 || c.Schedule.DayStartHour > 23 {
			return fmt.Errorf("schedule hours must be between 0 and 23")
		}
		if c.Schedule.NightStartHour == c.Schedule.DayStartHour {
			return fmt.Errorf("schedule night_start_hour and day_start_hour must differ")
		}
	}
	return nil
}
