package config

import (
	"strconv"
	"strings"
	"time"

	"punish-engine/model"
	"punish-engine/utils"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "PUNISH"

var defaults = map[string]interface{}{
	"database_path":     "data/punishments.db",
	"log_level":         "info",
	"log_format":        utils.LogFormatText,
	"store_timeout":     "5s",
	"lock_stripes":      64,
	"sweep_interval":    "5m",
	"ban_fail_open":     false,
	"mute_fail_closed":  false,
	"escalation_window": "30d",
	"severity_ladder":   "2,3,5",
	"metrics_addr":      "",
	"discord_bot_token": "",
	"audit_channel_id":  "",
	"stats_channel_id":  "",
	"stats_window":      "7d",
}

// Load loads the configuration from .env, an optional config.yaml and
// PUNISH_-prefixed environment variables, in increasing precedence.
func Load(log logrus.FieldLogger) (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found, relying on environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	} else {
		log.WithField("file", v.ConfigFileUsed()).Info("Loaded config file")
	}
	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper
// instance, binding environment variables and defaults first.
func FromViper(v *viper.Viper) (*model.Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var problems *multierror.Error
	duration := func(key string) time.Duration {
		d, err := utils.ParseDuration(v.GetString(key))
		if err != nil {
			problems = multierror.Append(problems, errors.Wrapf(err, "%s", key))
		}
		return d
	}

	cfg := &model.Config{
		DatabasePath:   v.GetString("database_path"),
		StoreTimeout:   duration("store_timeout"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		LockStripes:    v.GetInt("lock_stripes"),
		SweepInterval:  duration("sweep_interval"),
		BanFailOpen:    v.GetBool("ban_fail_open"),
		MuteFailClosed: v.GetBool("mute_fail_closed"),
		Escalation: model.EscalationConfig{
			Window: duration("escalation_window"),
		},
		MetricsAddr: v.GetString("metrics_addr"),
		Discord: model.DiscordConfig{
			BotToken:       v.GetString("discord_bot_token"),
			AuditChannelID: v.GetString("audit_channel_id"),
			StatsChannelID: v.GetString("stats_channel_id"),
			StatsWindow:    duration("stats_window"),
		},
	}

	ladder, err := parseLadder(v.GetString("severity_ladder"))
	if err != nil {
		problems = multierror.Append(problems, err)
	}
	cfg.Escalation.Ladder = ladder

	if strings.TrimSpace(cfg.DatabasePath) == "" {
		problems = multierror.Append(problems, errors.New("database_path must not be empty"))
	}
	if cfg.LockStripes < 0 {
		problems = multierror.Append(problems, errors.Errorf("lock_stripes must not be negative, got %d", cfg.LockStripes))
	}

	if err := problems.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// parseLadder reads a comma separated, non-decreasing list of positive
// offense counts.
func parseLadder(s string) ([]int, error) {
	var ladder []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("severity_ladder: invalid step %q", part)
		}
		if len(ladder) > 0 && n < ladder[len(ladder)-1] {
			return nil, errors.Errorf("severity_ladder: steps must not decrease, got %q", s)
		}
		ladder = append(ladder, n)
	}
	if len(ladder) > 3 {
		return nil, errors.Errorf("severity_ladder: at most 3 steps, got %d", len(ladder))
	}
	return ladder, nil
}
