package authsession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one lifecycle counter.
type MetricID uint16

const (
	// MetricSessionInitAuthenticated counts Initialize/Refresh runs that resolved a user.
	MetricSessionInitAuthenticated MetricID = iota
	// MetricSessionInitAnonymous counts Initialize/Refresh runs with no stored token.
	MetricSessionInitAnonymous
	// MetricSessionStale counts stored tokens the service rejected or could not check.
	MetricSessionStale
	// MetricSessionLogin counts sign-ins that persisted a token.
	MetricSessionLogin
	// MetricSessionLogout counts sign-outs.
	MetricSessionLogout
	// MetricSessionRefresh counts on-demand Refresh calls.
	MetricSessionRefresh
	// MetricCredentialStoreFailure counts backend I/O failures of the credential store.
	MetricCredentialStoreFailure
	// MetricEmailVerifyStarted and the next two count email verification outcomes.
	MetricEmailVerifyStarted
	MetricEmailVerifySuccess
	MetricEmailVerifyFailure
	// MetricLoginVerifyStarted and the next two count login verification outcomes.
	// Success is recorded only once the session holds the token.
	MetricLoginVerifyStarted
	MetricLoginVerifySuccess
	MetricLoginVerifyFailure
	// MetricVerifyMissingToken counts attempts started from a link with no token.
	MetricVerifyMissingToken
	// MetricTransportFailure counts service calls that failed before a usable reply.
	MetricTransportFailure
	// MetricRedirectFired counts countdown redirects performed.
	MetricRedirectFired
	// MetricAttemptDiscarded counts network replies that arrived after teardown.
	MetricAttemptDiscarded
	// MetricPasswordLoginSuccess and the next two count password login outcomes.
	MetricPasswordLoginSuccess
	MetricPasswordLoginVerificationRequired
	MetricPasswordLoginFailure
	// MetricProfileLatency is the profile fetch latency histogram.
	MetricProfileLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters honoring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to counter id. It is a no-op while metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for the profile latency histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricProfileLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricProfileLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricProfileLatency].buckets[i])
		}
		s.Histograms[MetricProfileLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
