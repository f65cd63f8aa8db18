package services

import (
	"context"
	"errors"
	"testing"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

func newMonitoringService(store *fakeMonitoringStore, provider *fakeProvider, events *fakePublisher, runner *manualRunner, webhooks *fakeDeliverer) *MonitoringLifecycle {
	return NewMonitoringLifecycle(store, provider, events, runner, webhooks, nil)
}

func TestCreateMonitoringStartsInactiveAndActivatesOnSetup(t *testing.T) {
	store := newFakeMonitoringStore()
	events := &fakePublisher{}
	runner := &manualRunner{}
	svc := newMonitoringService(store, &fakeProvider{}, events, runner, &fakeDeliverer{})

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{
		AreaOfInterest: *polygon(),
		Config:         ports.MonitoringConfig{Frequency: "daily", NotifyOnChange: true},
	})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}
	if monitoring.Status != ports.MonitoringInactive {
		t.Fatalf("expected initial status inactive, got %q", monitoring.Status)
	}

	runner.runAll(context.Background())

	active, err := store.GetMonitoring(context.Background(), monitoring.ID, "acct-1")
	if err != nil {
		t.Fatalf("load monitoring: %v", err)
	}
	if active.Status != ports.MonitoringActive {
		t.Fatalf("expected active after setup, got %q", active.Status)
	}
	if active.ProviderID != "mon-ext-1" {
		t.Fatalf("expected provider id mon-ext-1, got %q", active.ProviderID)
	}
}

func TestCreateMonitoringPublishesInactiveBeforeSetupOutcome(t *testing.T) {
	store := newFakeMonitoringStore()
	events := &fakePublisher{}
	svc := NewMonitoringLifecycle(store, &fakeProvider{}, events, inlineRunner{}, &fakeDeliverer{}, nil)

	if _, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{AreaOfInterest: *polygon()}); err != nil {
		t.Fatalf("create monitoring: %v", err)
	}

	updates := events.byType(ports.EventMonitoringUpdate)
	if len(updates) != 2 {
		t.Fatalf("expected 2 monitoring update events, got %d", len(updates))
	}
	first, ok := updates[0].data.(ports.Monitoring)
	if !ok {
		t.Fatalf("unexpected event payload %T", updates[0].data)
	}
	second, ok := updates[1].data.(ports.Monitoring)
	if !ok {
		t.Fatalf("unexpected event payload %T", updates[1].data)
	}
	// A setup call that finishes before Create returns must still publish its
	// active event after the inactive one.
	if first.Status != ports.MonitoringInactive || second.Status != ports.MonitoringActive {
		t.Fatalf("expected inactive then active, got %q then %q", first.Status, second.Status)
	}
}

func TestCreateMonitoringSetupFailureStaysInactiveAndNotifies(t *testing.T) {
	store := newFakeMonitoringStore()
	provider := &fakeProvider{
		setupFn: func(ports.Geometry, string, ports.MonitoringConfig) (ports.ProviderResource, error) {
			return ports.ProviderResource{}, ports.ErrProviderUnavailable
		},
	}
	events := &fakePublisher{}
	runner := &manualRunner{}
	svc := newMonitoringService(store, provider, events, runner, &fakeDeliverer{})

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{AreaOfInterest: *polygon()})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}
	runner.runAll(context.Background())

	current, err := store.GetMonitoring(context.Background(), monitoring.ID, "")
	if err != nil {
		t.Fatalf("load monitoring: %v", err)
	}
	if current.Status != ports.MonitoringInactive {
		t.Fatalf("failed setup must leave the record inactive, got %q", current.Status)
	}
	notifications := events.byType(ports.EventNotification)
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification event, got %d", len(notifications))
	}
	if notifications[0].owner != "acct-1" {
		t.Fatalf("notification must target the owner, got %q", notifications[0].owner)
	}
}

func TestCreateMonitoringRejectsInvalidWebhookURL(t *testing.T) {
	store := newFakeMonitoringStore()
	svc := newMonitoringService(store, &fakeProvider{}, &fakePublisher{}, &manualRunner{}, &fakeDeliverer{})

	_, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{
		AreaOfInterest: *polygon(),
		WebhookURL:     "ftp://example.com/hook",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.monitorings) != 0 {
		t.Fatal("monitoring must not be persisted on validation failure")
	}
}

func TestActivateAndDeactivateAreIdempotent(t *testing.T) {
	store := newFakeMonitoringStore()
	events := &fakePublisher{}
	runner := &manualRunner{}
	svc := newMonitoringService(store, &fakeProvider{}, events, runner, &fakeDeliverer{})

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{AreaOfInterest: *polygon()})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}

	activated, err := svc.Activate(context.Background(), monitoring.ID, "acct-1")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != ports.MonitoringActive {
		t.Fatalf("expected active, got %q", activated.Status)
	}

	eventsBefore := len(events.byType(ports.EventMonitoringUpdate))
	again, err := svc.Activate(context.Background(), monitoring.ID, "acct-1")
	if err != nil {
		t.Fatalf("repeat activate: %v", err)
	}
	if again.Status != ports.MonitoringActive {
		t.Fatalf("expected active on repeat, got %q", again.Status)
	}
	if got := len(events.byType(ports.EventMonitoringUpdate)); got != eventsBefore {
		t.Fatalf("no-op activation must not publish, had %d now %d", eventsBefore, got)
	}

	deactivated, err := svc.Deactivate(context.Background(), monitoring.ID, "acct-1")
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Status != ports.MonitoringInactive {
		t.Fatalf("expected inactive, got %q", deactivated.Status)
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	store := newFakeMonitoringStore()
	runner := &manualRunner{}
	svc := newMonitoringService(store, &fakeProvider{}, &fakePublisher{}, runner, &fakeDeliverer{})

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{AreaOfInterest: *polygon()})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}

	bogus := ports.MonitoringStatus("sleeping")
	_, err = svc.Update(context.Background(), monitoring.ID, "acct-1", UpdateMonitoringInput{Status: &bogus})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	store := newFakeMonitoringStore()
	runner := &manualRunner{}
	svc := newMonitoringService(store, &fakeProvider{}, &fakePublisher{}, runner, &fakeDeliverer{})

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{
		AreaOfInterest: *polygon(),
		Config:         ports.MonitoringConfig{Frequency: "daily"},
	})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}

	url := "https://example.com/hook"
	updated, err := svc.Update(context.Background(), monitoring.ID, "acct-1", UpdateMonitoringInput{WebhookURL: &url})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.WebhookURL != url {
		t.Fatalf("expected webhook url applied, got %q", updated.WebhookURL)
	}
	if updated.Config.Frequency != "daily" {
		t.Fatalf("untouched config must survive, got %q", updated.Config.Frequency)
	}
}

func TestDeletePublishesTerminalEvent(t *testing.T) {
	store := newFakeMonitoringStore()
	events := &fakePublisher{}
	runner := &manualRunner{}
	webhooks := &fakeDeliverer{}
	svc := newMonitoringService(store, &fakeProvider{}, events, runner, webhooks)

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{
		AreaOfInterest: *polygon(),
		WebhookURL:     "https://example.com/hook",
	})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}
	runner.runAll(context.Background())

	if err := svc.Delete(context.Background(), monitoring.ID, "acct-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetMonitoring(context.Background(), monitoring.ID, ""); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("record must be gone, got %v", err)
	}

	updates := events.byType(ports.EventMonitoringUpdate)
	last, ok := updates[len(updates)-1].data.(map[string]string)
	if !ok {
		t.Fatalf("expected map payload on delete event, got %T", updates[len(updates)-1].data)
	}
	if last["status"] != "deleted" {
		t.Fatalf("expected deleted status payload, got %q", last["status"])
	}

	// Webhook deliveries ride the task runner; drain it and confirm the
	// delete event was handed to the dispatcher.
	runner.runAll(context.Background())
	webhooks.mu.Lock()
	defer webhooks.mu.Unlock()
	found := false
	for _, delivery := range webhooks.deliveries {
		if delivery.resourceID == monitoring.ID && delivery.eventType == ports.EventMonitoringUpdate {
			found = true
		}
	}
	if !found {
		t.Fatal("expected delete event scheduled for webhook delivery")
	}
}

func TestGetStatusReconcilesProviderState(t *testing.T) {
	store := newFakeMonitoringStore()
	provider := &fakeProvider{
		monitoringStatusFn: func(string) (ports.ProviderStatus, error) {
			return ports.ProviderStatus{Status: "paused"}, nil
		},
	}
	runner := &manualRunner{}
	svc := newMonitoringService(store, provider, &fakePublisher{}, runner, &fakeDeliverer{})

	monitoring, err := svc.Create(context.Background(), "acct-1", CreateMonitoringInput{AreaOfInterest: *polygon()})
	if err != nil {
		t.Fatalf("create monitoring: %v", err)
	}
	runner.runAll(context.Background())

	got, err := svc.GetStatus(context.Background(), monitoring.ID, "acct-1")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != ports.MonitoringPaused {
		t.Fatalf("expected paused from provider, got %q", got.Status)
	}
}
