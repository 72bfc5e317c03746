package authkit

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by authkit APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the authentication engine.
	MetricLoginFailure
	// MetricSecondFactorRequired is an exported constant or variable used by the authentication engine.
	MetricSecondFactorRequired
	// MetricSecondFactorSuccess is an exported constant or variable used by the authentication engine.
	MetricSecondFactorSuccess
	// MetricSecondFactorFailure is an exported constant or variable used by the authentication engine.
	MetricSecondFactorFailure
	// MetricSecondFactorAttemptsExceeded is an exported constant or variable used by the authentication engine.
	MetricSecondFactorAttemptsExceeded
	// MetricTrustedDeviceBypass is an exported constant or variable used by the authentication engine.
	MetricTrustedDeviceBypass
	// MetricTrustedDeviceIssued is an exported constant or variable used by the authentication engine.
	MetricTrustedDeviceIssued
	// MetricTrustedDevicesRevoked is an exported constant or variable used by the authentication engine.
	MetricTrustedDevicesRevoked
	// MetricTOTPSuccess is an exported constant or variable used by the authentication engine.
	MetricTOTPSuccess
	// MetricTOTPFailure is an exported constant or variable used by the authentication engine.
	MetricTOTPFailure
	// MetricTOTPEnabled is an exported constant or variable used by the authentication engine.
	MetricTOTPEnabled
	// MetricTOTPDisabled is an exported constant or variable used by the authentication engine.
	MetricTOTPDisabled
	// MetricBackupCodeUsed is an exported constant or variable used by the authentication engine.
	MetricBackupCodeUsed
	// MetricBackupCodeFailed is an exported constant or variable used by the authentication engine.
	MetricBackupCodeFailed
	// MetricBackupCodesGenerated is an exported constant or variable used by the authentication engine.
	MetricBackupCodesGenerated
	// MetricWebauthnRegistered is an exported constant or variable used by the authentication engine.
	MetricWebauthnRegistered
	// MetricWebauthnRegistrationFailed is an exported constant or variable used by the authentication engine.
	MetricWebauthnRegistrationFailed
	// MetricWebauthnAssertionSuccess is an exported constant or variable used by the authentication engine.
	MetricWebauthnAssertionSuccess
	// MetricWebauthnAssertionFailed is an exported constant or variable used by the authentication engine.
	MetricWebauthnAssertionFailed
	// MetricWebauthnCloneDetected is an exported constant or variable used by the authentication engine.
	MetricWebauthnCloneDetected
	// MetricPasskeyLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricPasskeyLoginSuccess
	// MetricPasskeyLoginFailure is an exported constant or variable used by the authentication engine.
	MetricPasskeyLoginFailure
	// MetricRegistrationSuccess is an exported constant or variable used by the authentication engine.
	MetricRegistrationSuccess
	// MetricRegistrationDuplicate is an exported constant or variable used by the authentication engine.
	MetricRegistrationDuplicate
	// MetricEmailVerificationRequest is an exported constant or variable used by the authentication engine.
	MetricEmailVerificationRequest
	// MetricEmailVerificationConfirm is an exported constant or variable used by the authentication engine.
	MetricEmailVerificationConfirm
	// MetricPasswordResetRequest is an exported constant or variable used by the authentication engine.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirm is an exported constant or variable used by the authentication engine.
	MetricPasswordResetConfirm
	// MetricPasswordRehash is an exported constant or variable used by the authentication engine.
	MetricPasswordRehash
	// MetricPasswordChanged is an exported constant or variable used by the authentication engine.
	MetricPasswordChanged
	// MetricBreachCheckHit is an exported constant or variable used by the authentication engine.
	MetricBreachCheckHit
	// MetricBreachCheckUnavailable is an exported constant or variable used by the authentication engine.
	MetricBreachCheckUnavailable
	// MetricLoginLatency is an exported constant or variable used by the authentication engine.
	MetricLoginLatency

	metricIDCount
)

const histBucketCount = 8

type paddedCounter struct {
	value uint64
	_     [7]uint64
}

type histogram struct {
	buckets [histBucketCount]uint64
}

// Metrics defines a public type used by authkit APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]histogram
}

// MetricsSnapshot defines a public type used by authkit APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics may return an error when input validation, dependency calls, or security checks fail.
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled describes the enabled operation and its observable behavior.
//
// Enabled may return an error when input validation, dependency calls, or security checks fail.
// Enabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
//
// Inc may return an error when input validation, dependency calls, or security checks fail.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
//
// Observe may return an error when input validation, dependency calls, or security checks fail.
// Observe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value describes the value operation and its observable behavior.
//
// Value may return an error when input validation, dependency calls, or security checks fail.
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
