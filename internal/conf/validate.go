package conf

import (
	"fmt"
	"slices"
)

var validSeverities = []string{"low", "medium", "high", "critical"}

// Validate checks settings for values the pipeline cannot run with.
func Validate(s *Settings) error {
	if !s.Database.SQLite.Enabled && !s.Database.MySQL.Enabled {
		return fmt.Errorf("no database enabled, enable sqlite or mysql")
	}
	if s.Database.SQLite.Enabled && s.Database.MySQL.Enabled {
		return fmt.Errorf("both sqlite and mysql enabled, pick one")
	}

	if s.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1, got %d", s.Queue.Workers)
	}
	if s.Queue.VisibilityTimeout <= 0 {
		return fmt.Errorf("queue.visibilitytimeout must be positive")
	}
	if s.Queue.MaxReceiveCount < 1 {
		return fmt.Errorf("queue.maxreceivecount must be at least 1")
	}

	switch s.Storage.Provider {
	case "local", "ftp":
	default:
		return fmt.Errorf("unknown storage provider %q", s.Storage.Provider)
	}

	if s.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier.timeout must be positive")
	}
	if s.Classifier.MinConfidence < 0 || s.Classifier.MinConfidence > 1 {
		return fmt.Errorf("classifier.minconfidence must be within [0,1], got %v", s.Classifier.MinConfidence)
	}

	if s.Engine.DedupWindow <= 0 {
		return fmt.Errorf("engine.dedupwindow must be positive")
	}
	for i := range s.Engine.Rules {
		if err := validateRule(&s.Engine.Rules[i]); err != nil {
			return fmt.Errorf("engine.rules[%d]: %w", i, err)
		}
	}
	for i := range s.Engine.Overrides {
		o := &s.Engine.Overrides[i]
		if o.FromLabel == "" || o.ToLabel == "" {
			return fmt.Errorf("engine.overrides[%d]: fromLabel and toLabel are required", i)
		}
		if o.MinConfidence < 0 || o.MinConfidence > 1 {
			return fmt.Errorf("engine.overrides[%d]: minConfidence out of range", i)
		}
	}

	if s.Notification.Enabled && s.Notification.MaxAttempts < 1 {
		return fmt.Errorf("notification.maxattempts must be at least 1")
	}

	return nil
}

func validateRule(r *RuleConfig) error {
	if r.Label == "" {
		return fmt.Errorf("label is required")
	}
	if r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0,1], got %v", r.Threshold)
	}
	if !slices.Contains(validSeverities, r.Severity) {
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	if r.AlertType == "" {
		return fmt.Errorf("alertType is required")
	}
	return nil
}
