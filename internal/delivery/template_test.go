package delivery

import (
	"context"
	"testing"

	"github.com/ignite/crm-engine/internal/domain"
)

func TestRenderName(t *testing.T) {
	svc := NewTemplateService()
	out, err := svc.Render("Hi {{name}}, welcome back!", &domain.Customer{Name: "Ann", Email: "ann@example.com"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out != "Hi Ann, welcome back!" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderBlankNameFallsBack(t *testing.T) {
	svc := NewTemplateService()
	for _, name := range []string{"", "   "} {
		out, err := svc.Render("Hi {{name}}!", &domain.Customer{Name: name})
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		if out != "Hi Customer!" {
			t.Fatalf("name %q: unexpected output %q", name, out)
		}
	}
}

func TestRenderNoPlaceholders(t *testing.T) {
	svc := NewTemplateService()
	out, err := svc.Render("Flash sale today only", &domain.Customer{Name: "Ann"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out != "Flash sale today only" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderBadTemplate(t *testing.T) {
	svc := NewTemplateService()
	if _, err := svc.Render("Hi {% if %}", &domain.Customer{Name: "Ann"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSimulatedVendorRates(t *testing.T) {
	c := &domain.Customer{Name: "Ann"}

	always := NewSimulatedVendor(1.0, 1)
	for i := 0; i < 50; i++ {
		if out := always.Attempt(context.Background(), c, "m"); !out.Success {
			t.Fatal("success rate 1.0 must never fail")
		}
	}

	never := NewSimulatedVendor(0.0, 1)
	for i := 0; i < 50; i++ {
		out := never.Attempt(context.Background(), c, "m")
		if out.Success {
			t.Fatal("success rate 0.0 must never succeed")
		}
		if out.FailureReason != "Simulated vendor failure" {
			t.Fatalf("unexpected failure reason: %q", out.FailureReason)
		}
	}
}
