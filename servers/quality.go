package servers

import (
	"sync"
	"time"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// QualityBand classifies the freshest quality sample.
type QualityBand int

const (
	BandUnknown QualityBand = iota
	BandExcellent
	BandGood
	BandFair
	BandPoor
)

// String returns a human-readable representation of the band.
func (b QualityBand) String() string {
	switch b {
	case BandExcellent:
		return "Excellent"
	case BandGood:
		return "Good"
	case BandFair:
		return "Fair"
	case BandPoor:
		return "Poor"
	default:
		return "Unknown"
	}
}

// Band boundaries. Excellent and good are absolute; fair is anything
// else still within the configured thresholds.
const (
	excellentPingMs  = 100
	excellentLossPct = 1
	goodPingMs       = 200
	goodLossPct      = 5
)

// QualitySample is one ping/loss observation.
type QualitySample struct {
	PingMs      float64
	LossPercent float64
	TakenAt     time.Time
}

// QualityMonitor keeps a sliding window of recent samples for the
// active server and classifies them against the configured thresholds.
type QualityMonitor struct {
	maxPingMs      float64
	maxLossPercent float64

	mu      sync.RWMutex
	samples []QualitySample
}

// NewQualityMonitor creates a monitor judging samples against the
// given acceptability thresholds.
func NewQualityMonitor(maxPingMs, maxLossPercent float64) *QualityMonitor {
	return &QualityMonitor{
		maxPingMs:      maxPingMs,
		maxLossPercent: maxLossPercent,
	}
}

// Record appends a sample, evicting the oldest once the window is full.
func (m *QualityMonitor) Record(pingMs, lossPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, QualitySample{
		PingMs:      pingMs,
		LossPercent: lossPercent,
		TakenAt:     time.Now(),
	})
	if len(m.samples) > common.QualityHistorySize {
		m.samples = m.samples[len(m.samples)-common.QualityHistorySize:]
	}
}

// RecordResult feeds a probe outcome into the window. An unreachable
// probe lands as zero ping with total loss, which every band check
// treats as unacceptable.
func (m *QualityMonitor) RecordResult(res ProbeResult) {
	m.Record(res.PingMs(), res.LossPercent)
}

// Band classifies the newest sample.
func (m *QualityMonitor) Band() QualityBand {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return BandUnknown
	}

	s := m.samples[len(m.samples)-1]
	switch {
	case s.PingMs <= excellentPingMs && s.LossPercent <= excellentLossPct:
		return BandExcellent
	case s.PingMs <= goodPingMs && s.LossPercent <= goodLossPct:
		return BandGood
	case s.PingMs <= m.maxPingMs && s.LossPercent <= m.maxLossPercent:
		return BandFair
	default:
		return BandPoor
	}
}

// RecommendSwitch reports whether the most recent samples form a
// degraded streak: every one of them breaking at least one threshold.
// With fewer samples than the streak length it never recommends.
func (m *QualityMonitor) RecommendSwitch() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) < common.DegradedStreak {
		return false
	}
	for _, s := range m.samples[len(m.samples)-common.DegradedStreak:] {
		if s.PingMs <= m.maxPingMs && s.LossPercent <= m.maxLossPercent {
			return false
		}
	}
	return true
}

// History returns a copy of the sample window, oldest first.
func (m *QualityMonitor) History() []QualitySample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]QualitySample(nil), m.samples...)
}

// Reset drops the sample window, for use after switching servers.
func (m *QualityMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
}
