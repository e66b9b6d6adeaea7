// Package conf defines the application settings and functions to load and
// validate them. Settings are read from a YAML config file with environment
// variable overrides, and passed into components as an injected struct.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains top-level application settings.
type MainSettings struct {
	Name     string // instance name, used in logs and notifications
	LogLevel string // trace, debug, info, warn, error
	LogFile  string // rotated log file path, empty for stdout only
}

// DatabaseSettings contains settings for the relational store.
type DatabaseSettings struct {
	SQLite struct {
		Enabled bool
		Path    string // path to the sqlite database file
	}
	MySQL struct {
		Enabled  bool
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}
}

// MQTTSettings contains settings for the device ingress bridge.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string // topic carrying upload-complete notices
	ClientID string
	Username string
	Password string
}

// QueueSettings contains settings for the classification work queue.
type QueueSettings struct {
	BufferSize        int           // queue channel capacity
	VisibilityTimeout time.Duration // redelivery timeout for unacked messages
	MaxReceiveCount   int           // receive attempts before a message is dropped
	Workers           int           // number of classification worker instances
	MQTT              MQTTSettings  // optional device ingress
}

// StorageSettings selects where uploaded audio lives.
type StorageSettings struct {
	Provider string // "local" or "ftp"
	Local    struct {
		Path string // audio upload directory
	}
	FTP struct {
		Host     string
		Port     int
		Username string
		Password string
		BasePath string
		Timeout  time.Duration
	}
}

// ClassifierSettings contains settings for the opaque scoring function.
type ClassifierSettings struct {
	Endpoint      string        // HTTP inference endpoint
	Timeout       time.Duration // caller-imposed classify timeout
	ModelVersion  string
	Taxonomy      []string // fixed sound taxonomy accepted from the model
	MinConfidence float64  // floor below which predictions are not persisted
}

// EngineSettings contains settings for the alert rule engine.
type EngineSettings struct {
	DedupWindow time.Duration    // window for folding repeat detections into an open alert
	RulesFile   string           // optional external rule table, reloadable
	Rules       []RuleConfig     // inline rule table, used when RulesFile is empty
	Overrides   []OverrideConfig // label reclassification overrides
}

// NotificationSettings contains settings for alert fan-out.
type NotificationSettings struct {
	Enabled        bool
	QueueSize      int           // emission channel capacity
	Workers        int           // dispatch worker count
	MaxAttempts    int           // delivery attempts per channel
	InitialBackoff time.Duration // first retry delay
	MaxBackoff     time.Duration // retry delay cap
	Push           struct {
		Enabled bool
		URLs    []string // shoutrrr service URLs
	}
	Email struct {
		Enabled   bool
		URL       string // shoutrrr smtp URL
		Recipient string
	}
	SMS struct {
		Enabled   bool
		URL       string // shoutrrr SMS gateway URL
		Recipient string
	}
	Webhook struct {
		Enabled bool
		URL     string
		Timeout time.Duration
	}
}

// APISettings contains settings for the HTTP surface.
type APISettings struct {
	Enabled bool
	Address string // listen address, e.g. ":8080"
}

// Settings is the root configuration passed into components.
type Settings struct {
	Debug        bool
	Main         MainSettings
	Database     DatabaseSettings
	Queue        QueueSettings
	Storage      StorageSettings
	Classifier   ClassifierSettings
	Engine       EngineSettings
	Notification NotificationSettings
	API          APISettings
}

// Load reads settings from the given config file (or the default search paths
// when configPath is empty), applies defaults and environment overrides, and
// validates the result.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CARWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/carwatch")
		v.AddConfigPath("/etc/carwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine, defaults plus env vars apply.
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if settings.Engine.RulesFile != "" {
		rules, err := LoadRulesFile(settings.Engine.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading rules file: %w", err)
		}
		settings.Engine.Rules = rules
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}
