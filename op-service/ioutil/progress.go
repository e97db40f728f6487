package ioutil

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ethereum/go-ethereum/log"
)

// Progressor is told how many of total steps are done.
type Progressor func(curr, total int64)

// BarProgressor draws a progress bar to w. The bar is created on the first update,
// once the total is known.
func BarProgressor(w io.Writer, description string) Progressor {
	var (
		once sync.Once
		bar  *progressbar.ProgressBar
	)
	return func(curr, total int64) {
		once.Do(func() {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowCount(),
				progressbar.OptionSetElapsedTime(true),
				progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
			)
		})
		_ = bar.Set64(curr)
	}
}

func NoopProgressor() Progressor {
	return func(curr, total int64) {}
}

// LogProgressor logs progress at most once per Interval (one second if unset).
// The final step is always logged.
type LogProgressor struct {
	L        log.Logger
	Msg      string
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewLogProgressor(l log.Logger, msg string) *LogProgressor {
	if msg == "" {
		msg = "progress"
	}
	return &LogProgressor{L: l, Msg: msg}
}

func (l *LogProgressor) Progressor(curr, total int64) {
	if curr < total && !l.due(time.Now()) {
		return
	}
	l.L.Info(l.Msg, "current", curr, "total", total)
}

func (l *LogProgressor) due(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second
	}
	if now.Sub(l.last) < interval {
		return false
	}
	l.last = now
	return true
}
