package progress

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Global variables for progress tracking
var (
	totalBytesProcessed atomic.Uint64
	totalSize           uint64
	done                chan struct{}
	stopped             chan struct{}
	progressRunning     bool
	progressMutex       sync.Mutex
	logger              = slog.New(slog.NewTextHandler(io.Discard, nil))
	interval            = time.Second
)

// SetLogger sets where progress records go. Records are discarded until a
// logger is set.
func SetLogger(l *slog.Logger) {
	progressMutex.Lock()
	defer progressMutex.Unlock()
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = l
}

// SetInterval changes how often the reporter logs while running
func SetInterval(d time.Duration) {
	progressMutex.Lock()
	defer progressMutex.Unlock()
	if d > 0 {
		interval = d
	}
}

// Init starts tracking. size is the expected total in bytes, or 0 when
// unknown.
func Init(size uint64) {
	progressMutex.Lock()
	defer progressMutex.Unlock()

	if progressRunning {
		return
	}

	totalBytesProcessed.Store(0)
	totalSize = size

	done = make(chan struct{})
	stopped = make(chan struct{})
	progressRunning = true
	go report(logger, interval, done, stopped)
}

// Stop stops the progress tracking and waits for the final record
func Stop() {
	progressMutex.Lock()
	if !progressRunning {
		progressMutex.Unlock()
		return
	}
	close(done)
	progressRunning = false
	wait := stopped
	progressMutex.Unlock()
	<-wait
}

// Running reports whether a tracking session is active
func Running() bool {
	progressMutex.Lock()
	defer progressMutex.Unlock()
	return progressRunning
}

// AddBytes adds processed bytes to the counter
func AddBytes(n uint64) {
	if n > 0 {
		totalBytesProcessed.Add(n)
	}
}

// Processed returns the bytes counted since the last Init
func Processed() uint64 {
	return totalBytesProcessed.Load()
}

// report logs processing progress periodically until done is closed
func report(log *slog.Logger, every time.Duration, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	var prevBytes uint64
	startTime := time.Now()
	lastTick := startTime

	log.Debug("starting processing", "total", humanize.IBytes(totalSize))

	for {
		select {
		case now := <-ticker.C:
			currentBytes := totalBytesProcessed.Load()
			elapsed := now.Sub(lastTick).Seconds()
			lastTick = now
			var rate uint64
			if elapsed > 0 {
				rate = uint64(float64(currentBytes-prevBytes) / elapsed)
			}
			prevBytes = currentBytes

			if totalSize == 0 {
				log.Info("processed",
					"bytes", humanize.IBytes(currentBytes),
					"rate", humanize.IBytes(rate)+"/s")
				continue
			}

			percentage := float64(currentBytes) / float64(totalSize) * 100
			eta := "calculating..."
			if rate > 0 && currentBytes < totalSize {
				remaining := time.Duration(float64(totalSize-currentBytes)/float64(rate)) * time.Second
				eta = remaining.Round(time.Second).String()
			}
			log.Info("processed",
				"bytes", humanize.IBytes(currentBytes),
				"total", humanize.IBytes(totalSize),
				"percent", humanize.FtoaWithDigits(percentage, 1),
				"rate", humanize.IBytes(rate)+"/s",
				"eta", eta)
		case <-done:
			totalTime := time.Since(startTime)
			processed := totalBytesProcessed.Load()
			var avg uint64
			if secs := totalTime.Seconds(); secs > 0 {
				avg = uint64(float64(processed) / secs)
			}
			log.Info("completed processing",
				"bytes", humanize.IBytes(processed),
				"duration", totalTime.Round(time.Millisecond).String(),
				"avg_rate", humanize.IBytes(avg)+"/s")
			return
		}
	}
}

// Writer is a writer that tracks bytes written for progress reporting
type Writer struct {
	W io.Writer
}

// Write implements io.Writer and tracks bytes written
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if n > 0 {
		AddBytes(uint64(n))
	}
	return
}
