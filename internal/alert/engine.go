// Package alert implements the rule engine that turns detections into
// alerts. Evaluation runs synchronously on the classification path; only
// notification fan-out is deferred.
package alert

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/logging"
	"github.com/Deven-0012/Cloud-281/internal/observability"
)

// Event is what the engine hands to the notification dispatcher for a newly
// created alert. Folded duplicates never produce an Event.
type Event struct {
	Alert         *datastore.Alert
	NotifyOwner   bool
	NotifyService bool
}

// Sink receives events for newly created alerts. Emit must not block the
// evaluation path for long; the dispatcher buffers internally.
type Sink interface {
	Emit(event *Event)
}

// matchedRule is a rule normalized from either the external rule table or a
// tenant-edited database row.
type matchedRule struct {
	Threshold     float64
	Severity      string
	AlertType     string
	Message       string
	NotifyOwner   bool
	NotifyService bool
}

// Engine evaluates detections against the active rule table.
type Engine struct {
	store    datastore.Interface
	settings *conf.EngineSettings
	sink     Sink
	metrics  *observability.Metrics
	logger   *slog.Logger

	// vehicle -> tenant, so rule lookup doesn't hit the store per detection
	tenants *gocache.Cache

	mu        sync.RWMutex
	rules     []conf.RuleConfig
	overrides []conf.OverrideConfig
}

// NewEngine creates a rule engine. sink may be nil when notifications are
// disabled; metrics may be nil in tests.
func NewEngine(store datastore.Interface, settings *conf.EngineSettings, sink Sink, metrics *observability.Metrics) *Engine {
	logger := logging.ForService("alert-engine")
	if logger == nil {
		logger = slog.Default().With("service", "alert-engine")
	}

	rules := settings.Rules
	if len(rules) == 0 {
		rules = conf.DefaultRules()
	}
	overrides := settings.Overrides
	if overrides == nil {
		overrides = conf.DefaultOverrides()
	}

	return &Engine{
		store:     store,
		settings:  settings,
		sink:      sink,
		metrics:   metrics,
		logger:    logger,
		tenants:   gocache.New(5*time.Minute, 10*time.Minute),
		rules:     rules,
		overrides: overrides,
	}
}

// ReloadRules re-reads the external rule table, replacing the in-memory
// snapshot. Called from SIGHUP handling; a load failure keeps the old table.
func (e *Engine) ReloadRules() error {
	if e.settings.RulesFile == "" {
		return nil
	}
	rules, err := conf.LoadRulesFile(e.settings.RulesFile)
	if err != nil {
		return errors.New(err).
			Component("alert-engine").
			Category(errors.CategoryConfiguration).
			Build()
	}

	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
	e.logger.Info("rule table reloaded", "rules", len(rules), "path", e.settings.RulesFile)
	return nil
}

// Evaluate runs a detection through override remapping, rule lookup, the
// threshold test, and deduplicated alert creation. It returns the alert the
// detection ended up on (new or folded into), whether a new alert was
// created, or (nil, false, nil) when no rule fires. A rule lookup failure is
// returned as an error and never silently produces an alert.
func (e *Engine) Evaluate(ctx context.Context, d *datastore.Detection) (*datastore.Alert, bool, error) {
	label, confidence := e.applyOverrides(d.Label, d.Confidence)

	tenant, err := e.resolveTenant(d.VehicleID)
	if err != nil {
		return nil, false, err
	}

	rule, ok, err := e.matchRule(tenant, label)
	if err != nil {
		return nil, false, err
	}
	if !ok || confidence < rule.Threshold {
		return nil, false, nil
	}

	now := time.Now()
	candidate := &datastore.Alert{
		AlertID:     uuid.New().String(),
		VehicleID:   d.VehicleID,
		Label:       label,
		DetectionID: d.DetectionID,
		AlertType:   rule.AlertType,
		Severity:    rule.Severity,
		Priority:    PriorityFor(rule.Severity),
		Confidence:  confidence,
		Message:     rule.Message,
		Status:      datastore.AlertStatusNew,
		LastSeenAt:  now,
		SeenCount:   1,
	}

	alert, created, err := e.store.CreateAlertIfNoOpenDuplicate(candidate, e.settings.DedupWindow)
	if err != nil {
		return nil, false, err
	}

	if e.metrics != nil {
		if created {
			e.metrics.AlertsCreated.WithLabelValues(alert.Severity, alert.AlertType).Inc()
		} else {
			e.metrics.AlertsSuppressed.Inc()
		}
	}

	if created {
		e.logger.Info("alert created",
			"alert_id", alert.AlertID,
			"vehicle_id", alert.VehicleID,
			"label", alert.Label,
			"severity", alert.Severity,
			"confidence", alert.Confidence)
		if e.sink != nil && (rule.NotifyOwner || rule.NotifyService) {
			e.sink.Emit(&Event{
				Alert:         alert,
				NotifyOwner:   rule.NotifyOwner,
				NotifyService: rule.NotifyService,
			})
		}
	} else {
		e.logger.Debug("duplicate folded into open alert",
			"alert_id", alert.AlertID,
			"vehicle_id", alert.VehicleID,
			"label", alert.Label,
			"seen_count", alert.SeenCount)
	}

	return alert, created, nil
}

// applyOverrides remaps a label when its confidence lands in a configured
// override band. First matching override wins.
func (e *Engine) applyOverrides(label string, confidence float64) (string, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, o := range e.overrides {
		if o.FromLabel != label || confidence < o.MinConfidence {
			continue
		}
		if o.MaxConfidence > 0 && confidence > o.MaxConfidence {
			continue
		}
		return o.ToLabel, confidence
	}
	return label, confidence
}

// resolveTenant maps a vehicle to its tenant, caching the answer. An unknown
// vehicle still evaluates against fleet-wide rules.
func (e *Engine) resolveTenant(vehicleID string) (string, error) {
	if cached, found := e.tenants.Get(vehicleID); found {
		return cached.(string), nil
	}

	vehicle, err := e.store.GetVehicle(vehicleID)
	if err != nil {
		if errors.IsNotFound(err) {
			e.tenants.Set(vehicleID, "", gocache.DefaultExpiration)
			return "", nil
		}
		return "", err
	}

	e.tenants.Set(vehicleID, vehicle.TenantID, gocache.DefaultExpiration)
	return vehicle.TenantID, nil
}

// matchRule finds the active rule for (tenant, label). Database rules take
// precedence over the configured table; within each source a tenant-specific
// rule beats a fleet-wide one, and the highest threshold wins among several
// matches, mirroring the stored-rule ordering.
func (e *Engine) matchRule(tenant, label string) (matchedRule, bool, error) {
	stored, err := e.store.GetActiveRules(tenant, label)
	if err != nil {
		return matchedRule{}, false, err
	}
	if len(stored) > 0 {
		r := stored[0]
		return matchedRule{
			Threshold:     r.Threshold,
			Severity:      r.Severity,
			AlertType:     r.AlertType,
			Message:       r.Message,
			NotifyOwner:   r.NotifyOwner,
			NotifyService: r.NotifyService,
		}, true, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var tenantBest, fleetBest *conf.RuleConfig
	for i := range e.rules {
		r := &e.rules[i]
		if !r.Active || r.Label != label {
			continue
		}
		switch {
		case tenant != "" && r.Tenant == tenant:
			if tenantBest == nil || r.Threshold > tenantBest.Threshold {
				tenantBest = r
			}
		case r.Tenant == "":
			if fleetBest == nil || r.Threshold > fleetBest.Threshold {
				fleetBest = r
			}
		}
	}
	if tenantBest != nil {
		return fromConfig(tenantBest), true, nil
	}
	if fleetBest != nil {
		return fromConfig(fleetBest), true, nil
	}
	return matchedRule{}, false, nil
}

func fromConfig(r *conf.RuleConfig) matchedRule {
	return matchedRule{
		Threshold:     r.Threshold,
		Severity:      r.Severity,
		AlertType:     r.AlertType,
		Message:       r.Message,
		NotifyOwner:   r.NotifyOwner,
		NotifyService: r.NotifyService,
	}
}

// PriorityFor maps operator-configured severity to notification priority.
func PriorityFor(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}
