package engine

import (
	"time"

	"github.com/openedx/edxoffline/internal/domain"
)

// progressThrottle collapses per-chunk callbacks into at most one event per
// interval. The delta of every suppressed callback is carried into the next
// event so consumers summing deltas see every byte.
type progressThrottle struct {
	id       string
	interval time.Duration
	publish  func(domain.ProgressChanged)
	now      func() time.Time

	lastEmit time.Time
	emitted  int64
	read     int64
	total    int64
}

func newProgressThrottle(id string, interval time.Duration, publish func(domain.ProgressChanged)) *progressThrottle {
	return &progressThrottle{id: id, interval: interval, publish: publish, now: time.Now, total: -1}
}

func (p *progressThrottle) report(read, total int64) {
	p.read, p.total = read, total
	now := p.now()
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.interval && (total <= 0 || read < total) {
		return
	}
	p.lastEmit = now
	p.emit()
}

// flush publishes whatever was suppressed since the last event.
func (p *progressThrottle) flush() {
	if p.read > p.emitted {
		p.emit()
	}
}

func (p *progressThrottle) emit() {
	if p.read == p.emitted && p.emitted != 0 {
		return
	}
	p.publish(domain.ProgressChanged{
		ID:         p.id,
		BytesDelta: p.read - p.emitted,
		BytesRead:  p.read,
		TotalBytes: p.total,
	})
	p.emitted = p.read
}
