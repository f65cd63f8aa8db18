package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

// MonitoringLifecycle manages monitoring configurations: creation with a
// backgrounded provider setup, activation state, partial updates, and hard
// deletion. State changes fan out to live subscribers and, when a webhook URL
// is registered, to the webhook delivery pipeline.
type MonitoringLifecycle struct {
	store    ports.MonitoringStore
	provider ports.ProviderClient
	events   ports.EventPublisher
	tasks    ports.TaskRunner
	webhooks ports.WebhookDeliverer
	log      *slog.Logger
}

// NewMonitoringLifecycle constructs the monitoring lifecycle manager.
func NewMonitoringLifecycle(store ports.MonitoringStore, provider ports.ProviderClient, events ports.EventPublisher, tasks ports.TaskRunner, webhooks ports.WebhookDeliverer, log *slog.Logger) *MonitoringLifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &MonitoringLifecycle{store: store, provider: provider, events: events, tasks: tasks, webhooks: webhooks, log: log}
}

// CreateMonitoringInput carries the fields accepted on monitoring creation.
type CreateMonitoringInput struct {
	AreaOfInterest ports.Geometry
	WebhookURL     string
	Config         ports.MonitoringConfig
}

// Create validates the area of interest and webhook URL, persists the record
// as inactive, and schedules the provider setup in the background. The caller
// never waits on the setup call.
func (s *MonitoringLifecycle) Create(ctx context.Context, owner string, input CreateMonitoringInput) (ports.Monitoring, error) {
	if owner == "" {
		return ports.Monitoring{}, validationError("owner is required")
	}
	if err := validateGeometry(input.AreaOfInterest); err != nil {
		return ports.Monitoring{}, err
	}
	if input.WebhookURL != "" {
		if err := validateWebhookURL(input.WebhookURL); err != nil {
			return ports.Monitoring{}, err
		}
	}

	id, err := newResourceID("mon")
	if err != nil {
		return ports.Monitoring{}, err
	}
	now := time.Now().UTC()
	monitoring := ports.Monitoring{
		ID:             id,
		OwnerID:        owner,
		AreaOfInterest: input.AreaOfInterest,
		WebhookURL:     input.WebhookURL,
		Config:         input.Config,
		Status:         ports.MonitoringInactive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateMonitoring(ctx, monitoring); err != nil {
		return ports.Monitoring{}, fmt.Errorf("persist monitoring: %w", err)
	}

	// Publish the inactive event before the setup task can run, so a fast
	// worker's active event is never observed ahead of it.
	s.publish(monitoring, ports.EventMonitoringUpdate, monitoring)
	s.scheduleSetup(monitoring)
	return monitoring, nil
}

// scheduleSetup launches the single-attempt provider setup call. Failure is
// logged and surfaced as a notification event; the record stays inactive.
func (s *MonitoringLifecycle) scheduleSetup(monitoring ports.Monitoring) {
	err := s.tasks.Submit("monitoring.setup", func(ctx context.Context) {
		remote, err := s.provider.SetupMonitoring(ctx, monitoring.AreaOfInterest, monitoring.WebhookURL, monitoring.Config)
		if err != nil {
			s.log.ErrorContext(ctx, "provider monitoring setup failed", "monitoring_id", monitoring.ID, "error", err)
			s.events.PublishToOwner(monitoring.OwnerID, ports.EventNotification, map[string]string{
				"monitoringId": monitoring.ID,
				"message":      "provider setup failed",
			})
			return
		}

		status := ports.MonitoringActive
		update := ports.MonitoringUpdate{Status: &status}
		if remote.ID != "" {
			update.ProviderID = &remote.ID
		}
		updated, err := s.store.UpdateMonitoring(ctx, monitoring.ID, update)
		if err != nil {
			s.log.ErrorContext(ctx, "persist monitoring setup outcome", "monitoring_id", monitoring.ID, "error", err)
			return
		}
		s.publish(updated, ports.EventMonitoringUpdate, updated)
	})
	if err != nil {
		s.log.Error("monitoring setup not scheduled", "monitoring_id", monitoring.ID, "error", err)
	}
}

// Get returns the monitoring configuration.
func (s *MonitoringLifecycle) Get(ctx context.Context, id, owner string) (ports.Monitoring, error) {
	return s.store.GetMonitoring(ctx, id, owner)
}

// GetStatus reconciles best-effort against the provider, degrading to the
// locally stored status when the provider is unreachable.
func (s *MonitoringLifecycle) GetStatus(ctx context.Context, id, owner string) (ports.Monitoring, error) {
	monitoring, err := s.store.GetMonitoring(ctx, id, owner)
	if err != nil {
		return ports.Monitoring{}, err
	}
	if monitoring.ProviderID == "" {
		return monitoring, nil
	}

	remote, err := s.provider.GetMonitoringStatus(ctx, monitoring.ProviderID)
	if err != nil {
		s.log.DebugContext(ctx, "monitoring status reconciliation degraded to local state",
			"monitoring_id", monitoring.ID, "error", err)
		return monitoring, nil
	}
	mapped, ok := mapProviderMonitoringStatus(remote.Status)
	if !ok || mapped == monitoring.Status {
		return monitoring, nil
	}
	updated, err := s.store.UpdateMonitoring(ctx, monitoring.ID, ports.MonitoringUpdate{Status: &mapped})
	if err != nil {
		return ports.Monitoring{}, fmt.Errorf("persist reconciled status: %w", err)
	}
	s.publish(updated, ports.EventMonitoringUpdate, updated)
	return updated, nil
}

// Activate transitions to active; a no-op when already active.
func (s *MonitoringLifecycle) Activate(ctx context.Context, id, owner string) (ports.Monitoring, error) {
	return s.setStatus(ctx, id, owner, ports.MonitoringActive)
}

// Deactivate transitions to inactive; a no-op when already inactive.
func (s *MonitoringLifecycle) Deactivate(ctx context.Context, id, owner string) (ports.Monitoring, error) {
	return s.setStatus(ctx, id, owner, ports.MonitoringInactive)
}

func (s *MonitoringLifecycle) setStatus(ctx context.Context, id, owner string, status ports.MonitoringStatus) (ports.Monitoring, error) {
	monitoring, err := s.store.GetMonitoring(ctx, id, owner)
	if err != nil {
		return ports.Monitoring{}, err
	}
	if monitoring.Status == status {
		return monitoring, nil
	}
	updated, err := s.store.UpdateMonitoring(ctx, monitoring.ID, ports.MonitoringUpdate{Status: &status})
	if err != nil {
		return ports.Monitoring{}, fmt.Errorf("persist status change: %w", err)
	}
	s.publish(updated, ports.EventMonitoringUpdate, updated)
	return updated, nil
}

// UpdateMonitoringInput carries optional field changes; nil fields are left untouched.
type UpdateMonitoringInput struct {
	AreaOfInterest *ports.Geometry
	WebhookURL     *string
	Config         *ports.MonitoringConfig
	Status         *ports.MonitoringStatus
}

// Update re-validates any supplied geometry or webhook URL before persisting
// the partial change.
func (s *MonitoringLifecycle) Update(ctx context.Context, id, owner string, input UpdateMonitoringInput) (ports.Monitoring, error) {
	monitoring, err := s.store.GetMonitoring(ctx, id, owner)
	if err != nil {
		return ports.Monitoring{}, err
	}
	if input.AreaOfInterest != nil {
		if err := validateGeometry(*input.AreaOfInterest); err != nil {
			return ports.Monitoring{}, err
		}
	}
	if input.WebhookURL != nil && *input.WebhookURL != "" {
		if err := validateWebhookURL(*input.WebhookURL); err != nil {
			return ports.Monitoring{}, err
		}
	}
	if input.Status != nil {
		switch *input.Status {
		case ports.MonitoringActive, ports.MonitoringInactive, ports.MonitoringPaused:
		default:
			return ports.Monitoring{}, validationError("unknown monitoring status %q", string(*input.Status))
		}
	}

	updated, err := s.store.UpdateMonitoring(ctx, monitoring.ID, ports.MonitoringUpdate{
		AreaOfInterest: input.AreaOfInterest,
		WebhookURL:     input.WebhookURL,
		Config:         input.Config,
		Status:         input.Status,
	})
	if err != nil {
		return ports.Monitoring{}, fmt.Errorf("persist update: %w", err)
	}
	s.publish(updated, ports.EventMonitoringUpdate, updated)
	return updated, nil
}

// Delete removes the record and publishes a terminal deleted event so live
// subscribers and pending deliveries know the resource is gone.
func (s *MonitoringLifecycle) Delete(ctx context.Context, id, owner string) error {
	monitoring, err := s.store.GetMonitoring(ctx, id, owner)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMonitoring(ctx, monitoring.ID, owner); err != nil {
		return fmt.Errorf("delete monitoring: %w", err)
	}
	s.publish(monitoring, ports.EventMonitoringUpdate, map[string]string{
		"id":     monitoring.ID,
		"status": "deleted",
	})
	return nil
}

// List returns the owner's monitoring configurations.
func (s *MonitoringLifecycle) List(ctx context.Context, owner string, limit, offset int) ([]ports.Monitoring, error) {
	if owner == "" {
		return nil, validationError("owner is required")
	}
	limit, offset = NormalizeListWindow(limit, offset)
	return s.store.ListMonitoringByOwner(ctx, owner, limit, offset)
}

// publish fans the event out to live subscribers and, when a webhook URL is
// registered, schedules a webhook delivery. A failed webhook never fails the
// resource's lifecycle.
func (s *MonitoringLifecycle) publish(monitoring ports.Monitoring, eventType string, payload any) {
	s.events.PublishToOwner(monitoring.OwnerID, eventType, payload)
	if monitoring.WebhookURL == "" || s.webhooks == nil {
		return
	}

	url := monitoring.WebhookURL
	resourceID := monitoring.ID
	err := s.tasks.Submit("webhook.deliver", func(ctx context.Context) {
		if err := s.webhooks.DeliverWithRetry(ctx, url, eventType, payload, resourceID); err != nil {
			s.log.ErrorContext(ctx, "webhook delivery exhausted retries",
				"monitoring_id", resourceID, "event_type", eventType, "error", err)
		}
	})
	if err != nil {
		s.log.Error("webhook delivery not scheduled", "monitoring_id", resourceID, "error", err)
	}
}

func mapProviderMonitoringStatus(remote string) (ports.MonitoringStatus, bool) {
	switch remote {
	case "active", "enabled":
		return ports.MonitoringActive, true
	case "inactive", "disabled":
		return ports.MonitoringInactive, true
	case "paused":
		return ports.MonitoringPaused, true
	default:
		return "", false
	}
}
