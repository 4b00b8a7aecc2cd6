package authsession

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/authsession/credential"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRedirectFired)
	}
}

func BenchmarkMetricsIncDisabledParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricRedirectFired)
		}
	})
}

var hotLifecycleMetrics = [...]MetricID{
	MetricSessionInitAuthenticated,
	MetricSessionLogin,
	MetricEmailVerifyStarted,
	MetricEmailVerifySuccess,
	MetricLoginVerifyStarted,
	MetricRedirectFired,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(hotLifecycleMetrics[idx])
			idx++
			if idx == len(hotLifecycleMetrics) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 120 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricProfileLatency, d)
		}
	})
}

// State is read by every guarded request.
func BenchmarkSessionStateParallel(b *testing.B) {
	s := NewSession(credential.NewMemoryStore(), &blockingProfiles{}, SessionOptions{})
	if err := s.Login(context.Background(), "jwt", User{ID: "u1", Email: "a@b.co"}); err != nil {
		b.Fatalf("Login failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = s.State()
		}
	})
}
