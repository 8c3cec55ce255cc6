package delivery

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/segmentation"
)

type memStore struct {
	audience    []domain.Customer
	insertCalls [][]domain.CommunicationLog
	logs        []domain.CommunicationLog
	completed   []uuid.UUID
}

func (m *memStore) QueryAudience(_ context.Context, pred segmentation.Predicate) ([]domain.Customer, error) {
	var out []domain.Customer
	for i := range m.audience {
		if segmentation.Eval(pred, &m.audience[i]) {
			out = append(out, m.audience[i])
		}
	}
	return out, nil
}

func (m *memStore) CountAudience(ctx context.Context, pred segmentation.Predicate) (int, error) {
	out, err := m.QueryAudience(ctx, pred)
	return len(out), err
}

func (m *memStore) InsertLogs(_ context.Context, logs []domain.CommunicationLog) error {
	batch := make([]domain.CommunicationLog, len(logs))
	copy(batch, logs)
	m.insertCalls = append(m.insertCalls, batch)
	m.logs = append(m.logs, batch...)
	return nil
}

func (m *memStore) StreamLogs(_ context.Context, campaignID uuid.UUID, fn func(*domain.CommunicationLog) error) error {
	for i := range m.logs {
		if m.logs[i].CampaignID != campaignID {
			continue
		}
		if err := fn(&m.logs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) MarkCampaignCompleted(_ context.Context, campaignID uuid.UUID) error {
	m.completed = append(m.completed, campaignID)
	return nil
}

type memPublisher struct {
	events []ReceiptEvent
}

func (p *memPublisher) Publish(_ context.Context, body []byte) error {
	var ev ReceiptEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	p.events = append(p.events, ev)
	return nil
}

type stubVendor struct {
	outcome Outcome
	calls   int
}

func (v *stubVendor) Attempt(_ context.Context, _ *domain.Customer, _ string) Outcome {
	v.calls++
	return v.outcome
}

func newCustomers(n int) []domain.Customer {
	out := make([]domain.Customer, n)
	for i := range out {
		out[i] = domain.Customer{ID: uuid.New(), Name: "Ann", Email: "ann@example.com", TotalSpend: 2000}
	}
	return out
}

func TestDispatchProducesLogAndEventPerRecipient(t *testing.T) {
	store := &memStore{audience: newCustomers(7)}
	pub := &memPublisher{}
	vendor := &stubVendor{outcome: Outcome{Success: true}}

	o := NewOrchestrator(store, pub, vendor, NewTemplateService(), 50)
	campaign := &domain.Campaign{ID: uuid.New(), Name: "big spenders", MessageTemplate: "Hi {{name}}!"}
	groups := []segmentation.RuleGroup{
		{Conditions: []segmentation.Condition{{Field: "total_spend", Operator: ">", Value: "1000"}}},
	}

	if err := o.Dispatch(context.Background(), campaign, groups); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(store.logs) != 7 {
		t.Fatalf("expected 7 logs, got %d", len(store.logs))
	}
	for _, cl := range store.logs {
		if cl.DeliveryStatus != domain.DeliveryPending {
			t.Fatalf("log inserted with status %s, want PENDING", cl.DeliveryStatus)
		}
		if cl.MessageSent != "Hi Ann!" {
			t.Fatalf("unexpected rendered message: %q", cl.MessageSent)
		}
	}

	if vendor.calls != 7 {
		t.Fatalf("expected 7 vendor attempts, got %d", vendor.calls)
	}
	if len(pub.events) != 7 {
		t.Fatalf("expected 7 receipt events, got %d", len(pub.events))
	}
	for _, ev := range pub.events {
		if !ev.Success || ev.FailureReason != "" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}

	if len(store.completed) != 1 || store.completed[0] != campaign.ID {
		t.Fatalf("campaign not marked completed: %v", store.completed)
	}
}

func TestDispatchBatchesInserts(t *testing.T) {
	store := &memStore{audience: newCustomers(120)}
	o := NewOrchestrator(store, &memPublisher{}, &stubVendor{outcome: Outcome{Success: true}}, NewTemplateService(), 50)
	campaign := &domain.Campaign{ID: uuid.New(), MessageTemplate: "Hi {{name}}"}

	if err := o.Dispatch(context.Background(), campaign, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(store.insertCalls) != 3 {
		t.Fatalf("expected 3 insert batches, got %d", len(store.insertCalls))
	}
	for i, want := range []int{50, 50, 20} {
		if len(store.insertCalls[i]) != want {
			t.Fatalf("batch %d: expected %d rows, got %d", i, want, len(store.insertCalls[i]))
		}
	}
}

func TestDispatchReportsVendorFailures(t *testing.T) {
	store := &memStore{audience: newCustomers(3)}
	pub := &memPublisher{}
	vendor := &stubVendor{outcome: Outcome{Success: false, FailureReason: "Simulated vendor failure"}}

	o := NewOrchestrator(store, pub, vendor, NewTemplateService(), 50)
	campaign := &domain.Campaign{ID: uuid.New(), MessageTemplate: "Hi {{name}}"}

	if err := o.Dispatch(context.Background(), campaign, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	for _, ev := range pub.events {
		if ev.Success {
			t.Fatal("expected failed events")
		}
		if ev.FailureReason != "Simulated vendor failure" {
			t.Fatalf("unexpected failure reason: %q", ev.FailureReason)
		}
	}
	// Failures never abort the run.
	if len(store.completed) != 1 {
		t.Fatal("campaign must still complete when every attempt fails")
	}
}

func TestDispatchEmptyAudienceCompletes(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	o := NewOrchestrator(store, pub, &stubVendor{}, NewTemplateService(), 50)
	campaign := &domain.Campaign{ID: uuid.New(), MessageTemplate: "Hi {{name}}"}

	if err := o.Dispatch(context.Background(), campaign, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(store.logs) != 0 || len(pub.events) != 0 {
		t.Fatal("empty audience must produce no logs or events")
	}
	if len(store.completed) != 1 {
		t.Fatal("campaign with empty audience must still complete")
	}
}

func TestComputeAudience(t *testing.T) {
	audience := newCustomers(4)
	audience[0].TotalSpend = 10
	store := &memStore{audience: audience}

	o := NewOrchestrator(store, &memPublisher{}, &stubVendor{}, NewTemplateService(), 50)
	groups := []segmentation.RuleGroup{
		{Conditions: []segmentation.Condition{{Field: "total_spend", Operator: ">", Value: "1000"}}},
	}

	n, err := o.ComputeAudience(context.Background(), groups)
	if err != nil {
		t.Fatalf("compute audience failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected audience of 3, got %d", n)
	}
}
