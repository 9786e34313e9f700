package model

import "time"

// Config holds the engine settings loaded at startup.
type Config struct {
	DatabasePath string
	StoreTimeout time.Duration

	LogLevel  string
	LogFormat string

	LockStripes   int
	SweepInterval time.Duration

	// BanFailOpen treats a failed ban lookup as "not banned". The default
	// blocks the player until the store answers.
	BanFailOpen bool
	// MuteFailClosed treats a failed mute lookup as "muted". The default
	// lets the player speak.
	MuteFailClosed bool

	Escalation EscalationConfig

	MetricsAddr string

	Discord DiscordConfig
}

// EscalationConfig drives repeat-offense severity suggestions.
type EscalationConfig struct {
	Window time.Duration
	// Ladder holds the prior-offense counts that promote a suggestion to
	// MEDIUM, HIGH and CRITICAL respectively.
	Ladder []int
}

// DiscordConfig configures the audit notifier. An empty token disables it.
type DiscordConfig struct {
	BotToken       string
	AuditChannelID string
	StatsChannelID string
	StatsWindow    time.Duration
}
