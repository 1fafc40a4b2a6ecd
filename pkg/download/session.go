package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/parget/parget/pkg/client"
	"github.com/parget/parget/pkg/probe"
)

const pollInterval = 500 * time.Millisecond

var (
	ErrUnknownLength = errors.New("unable to determine resource length")
	ErrCancelled     = errors.New("download cancelled")
)

type State int32

const (
	StateIdle State = iota
	StateProbing
	StatePartitioning
	StateDownloading
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StatePartitioning:
		return "partitioning"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

type Config struct {
	URL  string
	Dest string

	// MaxConnections is the upper candidate for the concurrency probe, or
	// the worker count itself when SkipProbe is set.
	MaxConnections int
	SkipProbe      bool

	ConnectTimeout  time.Duration
	MetadataRetries int
	ProbeTimeout    time.Duration
	ProbeGrace      time.Duration
}

// transferer is the transfer capability consumed by workers.
type transferer interface {
	Transfer(ctx context.Context, t client.TransferRequest) error
}

// prober discovers the server-tolerated concurrency.
type prober interface {
	Probe(ctx context.Context, url string, maxCandidate int) int
}

// Session owns one whole download: it sequences probing, partitioning, worker
// launch and the completion wait, and exposes the derived progress metrics the
// renderer consumes.
type Session struct {
	cfg    Config
	logger zerolog.Logger

	controls       *Controls
	metaClient     *http.Client
	transferClient transferer
	prober         prober
	retryDelay     time.Duration
	pollEvery      time.Duration

	state atomic.Int32

	mu          sync.RWMutex
	resolvedURL string
	totalLength int64
	partitions  []Partition
	tracker     *Tracker
	workers     []*workerState
	dest        *os.File
	startTime   time.Time
}

func NewSession(cfg Config, logger zerolog.Logger) *Session {
	transferClient := client.NewHTTPClient(client.Options{
		ConnectTimeout: cfg.ConnectTimeout,
	})
	metaClient := client.NewHTTPClient(client.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		MaxRetries:     cfg.MetadataRetries,
	})

	probeClient := client.NewHTTPClient(client.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		Timeout:        cfg.ProbeTimeout,
	})
	prober := probe.New(probeClient)
	prober.Logger = logger
	if cfg.ProbeTimeout > 0 {
		prober.Timeout = cfg.ProbeTimeout
	}
	if cfg.ProbeGrace > 0 {
		prober.Grace = cfg.ProbeGrace
	}

	return &Session{
		cfg:            cfg,
		logger:         logger,
		controls:       NewControls(),
		metaClient:     metaClient.Client,
		transferClient: transferClient,
		prober:         prober,
		retryDelay:     retryBackoff,
		pollEvery:      pollInterval,
	}
}

// Controls exposes the pause/cancel plane for external input.
func (s *Session) Controls() *Controls {
	return s.controls
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	s.logger.Debug().Str("state", state.String()).Msg("Session state")
}

// Run executes the whole session: metadata discovery, probing, partitioning,
// worker launch and the completion wait. It blocks until the download
// completes or is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}
	return s.download(ctx)
}

func (s *Session) prepare(ctx context.Context) error {
	resolvedURL, totalLength, err := s.fetchMetadata(ctx)
	if err != nil {
		return err
	}

	s.setState(StateProbing)
	workers := s.cfg.MaxConnections
	if !s.cfg.SkipProbe {
		workers = s.prober.Probe(ctx, resolvedURL, s.cfg.MaxConnections)
		if workers == 0 {
			s.logger.Warn().Msg("Probe failed at one connection, falling back to a single worker")
			workers = 1
		}
	}

	s.setState(StatePartitioning)
	partitions, err := Plan(totalLength, workers)
	if err != nil {
		return err
	}

	dest, err := os.OpenFile(s.cfg.Dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", s.cfg.Dest, err)
	}
	// Pre-size the file so every worker write is in-bounds.
	if err := dest.Truncate(totalLength); err != nil {
		dest.Close()
		return fmt.Errorf("error pre-allocating %s: %w", s.cfg.Dest, err)
	}

	tracker := NewTracker(len(partitions))
	workerStates := make([]*workerState, len(partitions))
	for i, p := range partitions {
		workerStates[i] = &workerState{partition: p, entry: tracker.Entry(i)}
	}

	s.mu.Lock()
	s.resolvedURL = resolvedURL
	s.totalLength = totalLength
	s.partitions = partitions
	s.tracker = tracker
	s.workers = workerStates
	s.dest = dest
	s.mu.Unlock()

	s.logger.Info().
		Str("url", s.cfg.URL).
		Str("dest", s.cfg.Dest).
		Str("size", humanize.Bytes(uint64(totalLength))).
		Int("workers", len(partitions)).
		Msg("Downloading")
	return nil
}

func (s *Session) fetchMetadata(ctx context.Context) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.cfg.URL, nil)
	if err != nil {
		return "", -1, fmt.Errorf("failed to create request for %s: %w", s.cfg.URL, err)
	}
	resp, err := s.metaClient.Do(req)
	if err != nil {
		return "", -1, fmt.Errorf("error fetching metadata for %s: %w", s.cfg.URL, err)
	}
	defer resp.Body.Close()

	resolvedURL := resp.Request.URL.String()
	if resolvedURL != s.cfg.URL {
		s.logger.Info().Str("url", s.cfg.URL).Str("redirect_url", resolvedURL).Msg("Redirect")
	}
	if resp.StatusCode != http.StatusOK {
		return "", -1, fmt.Errorf("%w: status %d", ErrUnknownLength, resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return "", -1, ErrUnknownLength
	}
	return resolvedURL, resp.ContentLength, nil
}

func (s *Session) download(ctx context.Context) error {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	s.setState(StateDownloading)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		go func(w *workerState) {
			defer wg.Done()
			s.runWorker(workerCtx, w)
		}(w)
	}

	defer s.dest.Close()

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.controls.RequestCancel()
		case <-ticker.C:
		}

		if s.controls.IsCancelled() {
			cancelWorkers()
			wg.Wait()
			s.setState(StateCancelled)
			s.logger.Error().Str("dest", s.cfg.Dest).Msg("Download cancelled")
			return ErrCancelled
		}
		if s.controls.Completed() == len(s.workers) {
			break
		}
	}
	wg.Wait()
	s.setState(StateCompleted)

	elapsed := time.Since(s.startTime)
	throughput := humanize.Bytes(uint64(float64(s.totalLength) / elapsed.Seconds()))
	s.logger.Info().
		Str("dest", s.cfg.Dest).
		Str("size", humanize.Bytes(uint64(s.totalLength))).
		Str("elapsed", fmt.Sprintf("%.3fs", elapsed.Seconds())).
		Str("throughput", fmt.Sprintf("%s/s", throughput)).
		Msg("Complete")
	return nil
}

// WorkerProgress is one worker's observable counters.
type WorkerProgress struct {
	Index      int
	Downloaded int64
	Total      int64
}

// Snapshot is a point-in-time view of the session for display. Values come
// from relaxed reads of the per-worker counters and may transiently
// undercount.
type Snapshot struct {
	State       State
	URL         string
	Dest        string
	TotalLength int64
	Paused      bool

	Workers    []WorkerProgress
	Downloaded int64
	Expected   int64

	Elapsed time.Duration
	Speed   float64 // bytes per second
	ETA     time.Duration
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:       s.State(),
		URL:         s.cfg.URL,
		Dest:        s.cfg.Dest,
		TotalLength: s.totalLength,
		Paused:      s.controls.IsPaused(),
	}
	if s.tracker == nil {
		return snap
	}

	snap.Workers = make([]WorkerProgress, s.tracker.Workers())
	for i := range snap.Workers {
		downloaded, total := s.tracker.Entry(i).Snapshot()
		snap.Workers[i] = WorkerProgress{Index: i, Downloaded: downloaded, Total: total}
		snap.Downloaded += downloaded
		snap.Expected += total
	}

	if !s.startTime.IsZero() {
		snap.Elapsed = time.Since(s.startTime)
		if snap.Elapsed > 0 {
			snap.Speed = float64(snap.Downloaded) / snap.Elapsed.Seconds()
		}
		if snap.Speed > 0 && snap.Expected > snap.Downloaded {
			remaining := float64(snap.Expected - snap.Downloaded)
			snap.ETA = time.Duration(remaining / snap.Speed * float64(time.Second))
		}
	}
	return snap
}
