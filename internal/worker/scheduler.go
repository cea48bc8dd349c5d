package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/taxaformer/internal/cache"
	"github.com/ppiankov/taxaformer/internal/model"
)

// Scheduler errors
var (
	ErrQueueFull       = errors.New("queue is full, please try again later")
	ErrSessionBusy     = errors.New("session already has a job in the queue")
	ErrUnknownJob      = errors.New("unknown job")
	ErrSchedulerClosed = errors.New("scheduler closed")
)

// Runner analyzes one sequence stream
type Runner interface {
	Analyze(ctx context.Context, r io.Reader, sampleName string) (*model.AnalysisResult, error)
}

// State is the lifecycle state of a scheduled job
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Finished reports whether the job reached a terminal state
func (s State) Finished() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress checkpoints reported while a job runs
const (
	progressQueued   = 0
	progressOpened   = 25
	progressAnalyzed = 75
	progressCached   = 90
	progressDone     = 100
)

// statsWindow bounds how many recent durations feed the average
const statsWindow = 100

// Submission is a request to analyze a file already stored on disk
type Submission struct {
	SessionID  string
	SampleName string
	Path       string
	// RemoveAfter hands ownership of Path to the scheduler, which deletes it
	// once the job is finished. On a Submit error the caller keeps ownership.
	RemoveAfter bool
}

// JobStatus is a point-in-time view of a job
type JobStatus struct {
	ID            string
	SessionID     string
	SampleName    string
	Fingerprint   string
	State         State
	Cached        bool // Served from the result cache without running
	Position      int  // 1-indexed queue position; 0 once started
	Progress      int  // 0-100
	SizeBytes     int64
	Estimate      time.Duration // Expected processing time
	EstimatedWait time.Duration // Time until start (queued) or until done (processing)
	CreatedAt     time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
	Error         string
}

// QueueStats summarises the scheduler
type QueueStats struct {
	QueueLength          int
	Processing           int
	Completed            int
	Failed               int
	Workers              int
	MaxQueue             int
	EstimatedWaitNewJob  time.Duration
	AvgProcessingSeconds float64
}

type job struct {
	status      JobStatus
	path        string
	removeAfter bool
	result      *model.AnalysisResult
	err         error
	done        chan struct{}
}

// Scheduler queues analyses, runs them on a worker pool and caches results
// by content fingerprint. Each distinct fingerprint is analyzed at most once
// while a job for it is active or its result is cached.
type Scheduler struct {
	cfg     model.SchedulerConfig
	runner  Runner
	results *cache.Results
	logger  *zap.Logger
	pool    *Pool
	flight  singleflight.Group
	now     func() time.Time

	mu        sync.Mutex
	jobs      map[string]*job
	queue     []*job
	running   map[string]*job
	sessions  map[string]*job
	active    map[string]*job // fingerprint -> queued or processing job
	durations []float64
	closed    bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler. Call Start before expecting progress.
func NewScheduler(cfg model.SchedulerConfig, runner Runner, results *cache.Results, logger *zap.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 10
	}
	if results == nil {
		results = cache.NewResults(nil, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		results:  results,
		logger:   logger,
		pool:     NewPool(cfg.Workers, cfg.MaxQueue+cfg.Workers),
		now:      time.Now,
		jobs:     make(map[string]*job),
		running:  make(map[string]*job),
		sessions: make(map[string]*job),
		active:   make(map[string]*job),
		stop:     make(chan struct{}),
	}
}

// Start launches the workers and the retention janitor
func (s *Scheduler) Start() {
	s.pool.Start()

	s.wg.Add(2)
	go s.collect()
	go s.janitor()
}

// Close cancels running jobs, fails queued ones and stops all goroutines
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	for _, j := range pending {
		s.finishLocked(j, nil, ErrSchedulerClosed)
	}
	s.mu.Unlock()

	for _, j := range pending {
		s.release(j)
	}

	close(s.stop)
	s.pool.Shutdown()
	s.wg.Wait()
}

// Submit fingerprints the file and either serves a cached result, joins an
// active job for the same content, or queues a new job.
func (s *Scheduler) Submit(ctx context.Context, sub Submission) (JobStatus, error) {
	if err := s.checkSession(sub.SessionID, nil); err != nil {
		return JobStatus{}, err
	}

	fingerprint, size, err := fingerprintFile(sub.Path)
	if err != nil {
		return JobStatus{}, err
	}
	if err := ctx.Err(); err != nil {
		return JobStatus{}, err
	}

	// A failed session check is only meaningful to its own session
	v, err, shared := s.flight.Do(fingerprint+"\x00"+sub.SessionID, func() (any, error) {
		return s.admit(fingerprint, size, sub)
	})
	if err != nil {
		return JobStatus{}, err
	}
	j := v.(*job)

	s.mu.Lock()
	if sub.SessionID != "" {
		if err := s.checkSessionLocked(sub.SessionID, j); err != nil {
			s.mu.Unlock()
			return JobStatus{}, err
		}
		s.sessions[sub.SessionID] = j
	}
	status := s.snapshotLocked(j)
	s.mu.Unlock()

	// The file was not adopted by the job: its content is already queued or cached
	if sub.RemoveAfter && j.path != sub.Path {
		_ = os.Remove(sub.Path)
	}

	s.logger.Debug("job submitted",
		zap.String("job", status.ID),
		zap.String("sample", status.SampleName),
		zap.String("state", string(status.State)),
		zap.Bool("cached", status.Cached),
		zap.Bool("shared", shared))
	return status, nil
}

// admit resolves one fingerprint to a job
func (s *Scheduler) admit(fingerprint string, size int64, sub Submission) (*job, error) {
	if result, ok := s.results.Get(fingerprint); ok {
		now := s.now()
		j := &job{
			status: JobStatus{
				ID:          uuid.NewString(),
				SessionID:   sub.SessionID,
				SampleName:  sub.SampleName,
				Fingerprint: fingerprint,
				State:       StateCompleted,
				Cached:      true,
				Progress:    progressDone,
				SizeBytes:   size,
				CreatedAt:   now,
				StartedAt:   now,
				FinishedAt:  now,
			},
			result: result,
			done:   make(chan struct{}),
		}
		close(j.done)

		s.mu.Lock()
		s.jobs[j.status.ID] = j
		s.mu.Unlock()
		return j, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if existing, ok := s.active[fingerprint]; ok {
		return existing, nil
	}
	// The new job adopts sub.Path, so the session must be claimed in the
	// same critical section or a rejected caller would delete a queued file
	if sub.SessionID != "" {
		if err := s.checkSessionLocked(sub.SessionID, nil); err != nil {
			return nil, err
		}
	}
	if len(s.queue) >= s.cfg.MaxQueue {
		return nil, ErrQueueFull
	}

	j := &job{
		status: JobStatus{
			ID:          uuid.NewString(),
			SessionID:   sub.SessionID,
			SampleName:  sub.SampleName,
			Fingerprint: fingerprint,
			State:       StateQueued,
			Progress:    progressQueued,
			SizeBytes:   size,
			Estimate:    s.estimate(size),
			CreatedAt:   s.now(),
		},
		path:        sub.Path,
		removeAfter: sub.RemoveAfter,
		done:        make(chan struct{}),
	}
	if !s.pool.TrySubmit(&analysisJob{scheduler: s, job: j}) {
		return nil, ErrQueueFull
	}

	s.jobs[j.status.ID] = j
	s.queue = append(s.queue, j)
	s.active[fingerprint] = j
	if sub.SessionID != "" {
		s.sessions[sub.SessionID] = j
	}
	return j, nil
}

func (s *Scheduler) checkSession(sessionID string, allowed *job) error {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkSessionLocked(sessionID, allowed)
}

// checkSessionLocked enforces one active job per session. Joining the
// session's own active job is allowed.
func (s *Scheduler) checkSessionLocked(sessionID string, allowed *job) error {
	current, ok := s.sessions[sessionID]
	if !ok || current == allowed || current.status.State.Finished() {
		return nil
	}
	return ErrSessionBusy
}

// estimate predicts processing time from the file size
func (s *Scheduler) estimate(size int64) time.Duration {
	if s.cfg.BytesPerSecond <= 0 {
		return s.cfg.BaseEstimate
	}
	extra := max(0, size-1024) / s.cfg.BytesPerSecond
	return s.cfg.BaseEstimate + time.Duration(extra)*time.Second
}

// waitLocked estimates the time until the job at position (1-indexed) starts
func (s *Scheduler) waitLocked(position int) time.Duration {
	if position <= 0 {
		return 0
	}
	now := s.now()

	var total time.Duration
	for _, j := range s.running {
		total += max(0, j.status.Estimate-now.Sub(j.status.StartedAt))
	}
	for _, j := range s.queue[:min(position-1, len(s.queue))] {
		total += j.status.Estimate
	}
	return total / time.Duration(s.cfg.Workers)
}

func (s *Scheduler) snapshotLocked(j *job) JobStatus {
	status := j.status
	switch status.State {
	case StateQueued:
		for i, q := range s.queue {
			if q == j {
				status.Position = i + 1
				break
			}
		}
		status.EstimatedWait = s.waitLocked(status.Position)
	case StateProcessing:
		status.EstimatedWait = max(0, status.Estimate-s.now().Sub(status.StartedAt))
	}
	return status
}

// Status returns the current view of a job
func (s *Scheduler) Status(id string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return s.snapshotLocked(j), nil
}

// SessionStatus returns the latest job of a session
func (s *Scheduler) SessionStatus(sessionID string) (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.sessions[sessionID]
	if !ok {
		return JobStatus{}, false
	}
	return s.snapshotLocked(j), true
}

// Result returns the result of a completed job. For a failed job it returns
// the job's error; for an unfinished job the result is nil.
func (s *Scheduler) Result(id string) (*model.AnalysisResult, JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return j.result, s.snapshotLocked(j), j.err
}

// Wait blocks until the job finishes or ctx is done
func (s *Scheduler) Wait(ctx context.Context, id string) (*model.AnalysisResult, JobStatus, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		status, _ := s.Status(id)
		return nil, status, ctx.Err()
	}
	return s.Result(id)
}

// Stats returns queue statistics
func (s *Scheduler) Stats() QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := QueueStats{
		QueueLength:         len(s.queue),
		Processing:          len(s.running),
		Workers:             s.cfg.Workers,
		MaxQueue:            s.cfg.MaxQueue,
		EstimatedWaitNewJob: s.waitLocked(len(s.queue) + 1),
	}
	for _, j := range s.jobs {
		switch j.status.State {
		case StateCompleted:
			st.Completed++
		case StateFailed:
			st.Failed++
		}
	}
	if mean, err := stats.Mean(s.durations); err == nil {
		st.AvgProcessingSeconds = math.Round(mean*100) / 100
	}
	return st
}

// Cleanup drops finished jobs older than the retention period. A zero
// retention keeps finished jobs forever.
func (s *Scheduler) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Retention <= 0 {
		return 0
	}

	cutoff := s.now().Add(-s.cfg.Retention)
	removed := 0
	for id, j := range s.jobs {
		if !j.status.State.Finished() || j.status.FinishedAt.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		if sid := j.status.SessionID; sid != "" && s.sessions[sid] == j {
			delete(s.sessions, sid)
		}
		removed++
	}
	return removed
}

// process runs one queued job on a pool worker
func (s *Scheduler) process(ctx context.Context, j *job) error {
	s.mu.Lock()
	if j.status.State != StateQueued {
		s.mu.Unlock()
		return nil
	}
	for i, q := range s.queue {
		if q == j {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	j.status.State = StateProcessing
	j.status.StartedAt = s.now()
	s.running[j.status.ID] = j
	s.mu.Unlock()

	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	result, err := s.run(ctx, j)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out after %s: %w", s.cfg.JobTimeout, err)
	}
	s.release(j)

	s.mu.Lock()
	s.finishLocked(j, result, err)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("job failed",
			zap.String("job", j.status.ID),
			zap.String("sample", j.status.SampleName),
			zap.Error(err))
	}
	return err
}

func (s *Scheduler) run(ctx context.Context, j *job) (*model.AnalysisResult, error) {
	start := s.now()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	s.setProgress(j, progressOpened)

	result, err := s.runner.Analyze(ctx, f, j.status.SampleName)
	if err != nil {
		return nil, err
	}
	result.Metadata.SetProcessingTime(s.now().Sub(start))
	s.setProgress(j, progressAnalyzed)

	if err := s.results.Put(j.status.Fingerprint, result); err != nil {
		s.logger.Warn("cache store failed", zap.String("job", j.status.ID), zap.Error(err))
	}
	s.setProgress(j, progressCached)
	return result, nil
}

func (s *Scheduler) setProgress(j *job, progress int) {
	s.mu.Lock()
	j.status.Progress = progress
	s.mu.Unlock()
}

func (s *Scheduler) finishLocked(j *job, result *model.AnalysisResult, err error) {
	if j.status.State.Finished() {
		return
	}
	j.status.FinishedAt = s.now()
	if err != nil {
		j.status.State = StateFailed
		j.status.Error = err.Error()
		j.err = err
	} else {
		j.status.State = StateCompleted
		j.status.Progress = progressDone
		j.result = result
	}
	if !j.status.StartedAt.IsZero() {
		s.durations = append(s.durations, j.status.FinishedAt.Sub(j.status.StartedAt).Seconds())
		if len(s.durations) > statsWindow {
			s.durations = s.durations[len(s.durations)-statsWindow:]
		}
	}
	delete(s.running, j.status.ID)
	if s.active[j.status.Fingerprint] == j {
		delete(s.active, j.status.Fingerprint)
	}
	close(j.done)
}

// release deletes an adopted upload once the job no longer needs it
func (s *Scheduler) release(j *job) {
	if j.removeAfter && j.path != "" {
		if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove upload", zap.String("path", j.path), zap.Error(err))
		}
	}
}

// collect drains pool results so workers never block
func (s *Scheduler) collect() {
	defer s.wg.Done()
	for range s.pool.Results() {
	}
}

// janitor applies the retention policy periodically
func (s *Scheduler) janitor() {
	defer s.wg.Done()

	if s.cfg.Retention <= 0 {
		<-s.stop
		return
	}
	interval := min(max(s.cfg.Retention/2, time.Second), time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				s.logger.Debug("expired finished jobs", zap.Int("removed", n))
			}
		}
	}
}

// analysisJob adapts a scheduled job to the pool
type analysisJob struct {
	scheduler *Scheduler
	job       *job
}

func (a *analysisJob) Execute(ctx context.Context) Result {
	return &jobResult{id: a.job.status.ID, err: a.scheduler.process(ctx, a.job)}
}

type jobResult struct {
	id  string
	err error
}

func (r *jobResult) GetError() error {
	return r.err
}

func fingerprintFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	return cache.Fingerprint(f)
}
