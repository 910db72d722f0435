package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterStore_BurstThenReject(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !s.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst rejected", i+1)
		}
	}
	if s.Allow("1.2.3.4") {
		t.Error("request over burst allowed")
	}
}

func TestLimiterStore_PerIPIsolation(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("1.1.1.1") {
		t.Fatal("first ip rejected")
	}
	if s.Allow("1.1.1.1") {
		t.Error("first ip not limited after burst")
	}
	if !s.Allow("2.2.2.2") {
		t.Error("second ip shares the first ip's bucket")
	}
}

func TestLimiterStore_EmptyIPBucketed(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)
	if !s.Allow("") {
		t.Fatal("empty ip rejected outright")
	}
	if s.Allow("  ") {
		t.Error("blank ips should share one bucket")
	}
}

func TestClientIPFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:52311"
	if got := ClientIPFromRequest(req); got != "10.0.0.7" {
		t.Errorf("ClientIPFromRequest = %q, want 10.0.0.7", got)
	}

	req.RemoteAddr = "10.0.0.8"
	if got := ClientIPFromRequest(req); got != "10.0.0.8" {
		t.Errorf("ClientIPFromRequest without port = %q", got)
	}
}
