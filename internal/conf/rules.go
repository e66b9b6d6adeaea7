package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleConfig maps a sound label to alerting behavior for a tenant. An empty
// tenant applies to every tenant that has no rule of its own for the label.
type RuleConfig struct {
	Tenant        string  `yaml:"tenant"`
	Label         string  `yaml:"label"`
	Threshold     float64 `yaml:"threshold"`
	Severity      string  `yaml:"severity"`
	AlertType     string  `yaml:"alertType"`
	NotifyOwner   bool    `yaml:"notifyOwner"`
	NotifyService bool    `yaml:"notifyService"`
	Message       string  `yaml:"message"`
	Active        bool    `yaml:"active"`
}

// OverrideConfig reclassifies a detection before rule lookup. The original
// system hardcoded these (a very high confidence siren is usually a gunshot
// the model was never trained on); here they are operator configuration.
type OverrideConfig struct {
	FromLabel     string  `yaml:"fromLabel"`
	MinConfidence float64 `yaml:"minConfidence"`
	MaxConfidence float64 `yaml:"maxConfidence"` // 0 means no upper bound
	ToLabel       string  `yaml:"toLabel"`
}

// rulesFile is the on-disk shape of an external rule table.
type rulesFile struct {
	Rules     []RuleConfig     `yaml:"rules"`
	Overrides []OverrideConfig `yaml:"overrides"`
}

// LoadRulesFile reads a rule table from a YAML file.
func LoadRulesFile(path string) ([]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("%s contains no rules", path)
	}
	return rf.Rules, nil
}

// DefaultRules returns the built-in rule table matching the fixed sound
// taxonomy. Used when no rule table is configured so a fresh install alerts
// sensibly out of the box.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{Label: "engine_fault", Threshold: 0.85, Severity: "high", AlertType: "mechanical", NotifyOwner: true, NotifyService: true, Active: true,
			Message: "Engine fault detected. Please check your vehicle immediately."},
		{Label: "brake_issue", Threshold: 0.80, Severity: "critical", AlertType: "safety", NotifyOwner: true, NotifyService: true, Active: true,
			Message: "Brake system issue detected. Stop vehicle safely and call for assistance."},
		{Label: "tire_problem", Threshold: 0.75, Severity: "medium", AlertType: "maintenance", NotifyOwner: true, Active: true,
			Message: "Tire issue or mechanical sound detected. Schedule maintenance soon."},
		{Label: "drilling", Threshold: 0.75, Severity: "medium", AlertType: "maintenance", NotifyOwner: true, Active: true,
			Message: "Drilling or mechanical sound detected. Check vehicle for maintenance needs."},
		{Label: "siren", Threshold: 0.90, Severity: "high", AlertType: "emergency", NotifyOwner: true, Active: true,
			Message: "Emergency siren detected nearby."},
		{Label: "collision", Threshold: 0.85, Severity: "critical", AlertType: "emergency", NotifyOwner: true, NotifyService: true, Active: true,
			Message: "Collision detected! Emergency services may be needed."},
		{Label: "glass_break", Threshold: 0.80, Severity: "high", AlertType: "security", NotifyOwner: true, NotifyService: true, Active: true,
			Message: "Glass break detected. Possible security breach."},
		{Label: "distress_call", Threshold: 0.85, Severity: "critical", AlertType: "emergency", NotifyOwner: true, NotifyService: true, Active: true,
			Message: "Distress call detected in vehicle. Immediate attention required."},
		{Label: "gun_fire", Threshold: 0.80, Severity: "critical", AlertType: "emergency", NotifyOwner: true, NotifyService: true, Active: true,
			Message: "Gun fire detected! Immediate emergency response required."},
		{Label: "animal_sound", Threshold: 0.70, Severity: "low", AlertType: "maintenance", NotifyOwner: true, Active: true,
			Message: "Animal sound detected in vehicle."},
		{Label: "horn", Threshold: 0.80, Severity: "medium", AlertType: "safety", NotifyOwner: true, Active: true,
			Message: "Horn sound detected. Check for traffic or safety concerns."},
	}
}

// DefaultOverrides returns the built-in reclassification overrides carried
// over from the original deployment's model quirks.
func DefaultOverrides() []OverrideConfig {
	return []OverrideConfig{
		// The model has no gunshot class and scores gunshots as near-certain sirens.
		{FromLabel: "siren", MinConfidence: 0.98, ToLabel: "gun_fire"},
		// Drilling is frequently scored as a very confident tire problem.
		{FromLabel: "tire_problem", MinConfidence: 0.95, ToLabel: "drilling"},
	}
}

// DefaultTaxonomy returns the fixed sound taxonomy of the deployed model.
func DefaultTaxonomy() []string {
	return []string{
		"engine_fault",
		"brake_issue",
		"tire_problem",
		"drilling",
		"siren",
		"horn",
		"collision",
		"glass_break",
		"human_voice",
		"distress_call",
		"gun_fire",
		"animal_sound",
		"appliance_audio",
		"normal",
	}
}
