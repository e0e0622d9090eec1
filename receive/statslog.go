package receive

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// StatsSample pairs a Stats snapshot with the wall-clock time it was taken,
// the unit a StatsLog persists so stats history can be replotted later.
type StatsSample struct {
	Time  time.Time `json:"time"`
	Stats Stats     `json:"stats"`
}

// StatsLog appends newline-delimited JSON StatsSamples to a file. It is
// safe for concurrent use by multiple PublishStats callbacks.
type StatsLog struct {
	mu sync.Mutex
	f  *os.File
	enc *json.Encoder
}

// OpenStatsLog opens path for appending, creating it if necessary.
func OpenStatsLog(path string) (*StatsLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &StatsLog{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one sample.
func (l *StatsLog) Write(s StatsSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(s)
}

// Close closes the underlying file.
func (l *StatsLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// ReadStatsLog reads every sample from a StatsLog file in order.
func ReadStatsLog(path string) ([]StatsSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []StatsSample
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var s StatsSample
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				break
			}
			return samples, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}
