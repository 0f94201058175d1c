package pipeline

import (
	"sync/atomic"
	"time"
)

// Progress tracks unit completion for status reporting. Safe for
// concurrent use.
type Progress struct {
	total          atomic.Int64
	done           atomic.Int64
	checkpointHits atomic.Int64
	empty          atomic.Int64
	failed         atomic.Int64
	records        atomic.Int64
	started        atomic.Int64
}

// ProgressSnapshot is the JSON view served on the status endpoint.
type ProgressSnapshot struct {
	UnitsTotal     int64   `json:"units_total"`
	UnitsDone      int64   `json:"units_done"`
	CheckpointHits int64   `json:"checkpoint_hits"`
	EmptyUnits     int64   `json:"empty_units"`
	FailedUnits    int64   `json:"failed_units"`
	Records        int64   `json:"records"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (p *Progress) begin(total int) {
	p.total.Store(int64(total))
	p.started.Store(time.Now().UnixNano())
}

func (p *Progress) unitDone(hit bool, records int) {
	p.done.Add(1)
	p.records.Add(int64(records))
	if hit {
		p.checkpointHits.Add(1)
	}
	if records == 0 {
		p.empty.Add(1)
	}
}

func (p *Progress) unitFailed() {
	p.done.Add(1)
	p.failed.Add(1)
}

// Snapshot copies the counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	snap := ProgressSnapshot{
		UnitsTotal:     p.total.Load(),
		UnitsDone:      p.done.Load(),
		CheckpointHits: p.checkpointHits.Load(),
		EmptyUnits:     p.empty.Load(),
		FailedUnits:    p.failed.Load(),
		Records:        p.records.Load(),
	}
	if started := p.started.Load(); started > 0 {
		snap.ElapsedSeconds = time.Since(time.Unix(0, started)).Seconds()
	}
	return snap
}
