package ringbuffer

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unionsquare/unionsquare/internal/logger"
)

// StatsReporter periodically logs a RingBuffer's write/read/overwrite
// counters, giving operators a cheap signal that the audit worker is
// keeping up without instrumenting every hot-path write.
type StatsReporter struct {
	buffer *RingBuffer
	cron   *cron.Cron
	log    logger.ScopedLogger
}

// NewStatsReporter wires buffer's Stats into a cron job firing every
// interval, via cron.Every rather than a fixed expression so the interval
// can come straight from config (ring_buffer_stats_every) without the
// caller hand-writing a cron string.
func NewStatsReporter(buffer *RingBuffer, interval time.Duration) *StatsReporter {
	r := &StatsReporter{
		buffer: buffer,
		cron:   cron.New(),
		log:    logger.RingBuffer(),
	}
	r.cron.Schedule(cron.Every(interval), cron.FuncJob(r.report))
	return r
}

func (r *StatsReporter) report() {
	stats := r.buffer.Stats()
	r.log.Info().
		Uint64("total_writes", stats.TotalWrites).
		Uint64("total_reads", stats.TotalReads).
		Uint64("overwrites", stats.Overwrites).
		Int("capacity", r.buffer.Capacity()).
		Msg("ring buffer stats")
}

// Start begins the cron schedule in its own goroutine.
func (r *StatsReporter) Start() {
	r.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight report to finish.
func (r *StatsReporter) Stop() {
	<-r.cron.Stop().Done()
}
