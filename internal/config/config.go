// Package config handles campaign-agent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/adagent/config.yaml, /etc/adagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "adagent", "config.yaml"))
	}

	paths = append(paths, "/etc/adagent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all campaign-agent configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	Agent         AgentConfig         `yaml:"agent"`
	Dataset       DatasetConfig       `yaml:"dataset"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Notifications NotificationsConfig `yaml:"notifications"`
	DashboardURL  string              `yaml:"dashboard_url"`
	LogLevel      string              `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// AgentConfig defines reasoning-model and loop settings.
type AgentConfig struct {
	Model string `yaml:"model"`
	// MaxTurns bounds the tool-calling loop. A model that never stops
	// requesting tools is cut off with an error after this many model
	// calls. Default 10.
	MaxTurns  int `yaml:"max_turns"`
	MaxTokens int `yaml:"max_tokens"`
}

// DatasetConfig points at the demo campaign dataset.
type DatasetConfig struct {
	Path string `yaml:"path"`
}

// ConversationsConfig defines conversation persistence settings.
type ConversationsConfig struct {
	DBPath string `yaml:"db_path"`
	// MaxTurns is the retained history length per conversation.
	// Older turns are trimmed on append. Default 40.
	MaxTurns int `yaml:"max_turns"`
}

// NotificationsConfig defines the outbound notification channels.
// A channel with empty settings is disabled; the others still run.
type NotificationsConfig struct {
	Slack SlackConfig `yaml:"slack"`
	Email EmailConfig `yaml:"email"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// SlackConfig defines the Slack incoming-webhook channel.
type SlackConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	ChannelName string `yaml:"channel_name"`
}

// EmailConfig defines the email draft channel. Drafts are generated for
// review, not sent.
type EmailConfig struct {
	From      string `yaml:"from"`
	Recipient string `yaml:"recipient"`
	DraftsDir string `yaml:"drafts_dir"` // default "drafts"
}

// MQTTConfig defines the MQTT ops-feed channel.
type MQTTConfig struct {
	Broker    string `yaml:"broker"` // e.g. mqtt://broker:1883 or mqtts://broker:8883
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TopicBase string `yaml:"topic_base"` // default "adagent"
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Agent: AgentConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTurns:  10,
			MaxTokens: 4096,
		},
		Dataset:       DatasetConfig{Path: "data/campaign_demo_data.json"},
		Conversations: ConversationsConfig{DBPath: "conversations.db", MaxTurns: 40},
		Notifications: NotificationsConfig{
			MQTT: MQTTConfig{TopicBase: "adagent"},
		},
	}
}
