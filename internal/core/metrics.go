package core

// Metrics is implemented by the status server. Components record through
// this interface so they never depend on the metrics backend directly.
type Metrics interface {
	RecordAPIRequest(endpoint, status string)
	RecordRateLimited()
	RecordTokenRefresh(status string)
	RecordPollTick(result string)
	RecordAutoAdvance()
	RecordAuthAttempt(status string)
	SetSessionActive(active bool)
}

// NopMetrics discards all recordings.
type NopMetrics struct{}

func (NopMetrics) RecordAPIRequest(string, string) {}
func (NopMetrics) RecordRateLimited()              {}
func (NopMetrics) RecordTokenRefresh(string)       {}
func (NopMetrics) RecordPollTick(string)           {}
func (NopMetrics) RecordAutoAdvance()              {}
func (NopMetrics) RecordAuthAttempt(string)        {}
func (NopMetrics) SetSessionActive(bool)           {}
