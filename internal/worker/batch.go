package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/taxaformer/internal/model"
)

// Opener resolves a file location to a readable stream and display name
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, string, error)
}

// FileJob analyzes one sequence file
type FileJob struct {
	Index    int
	Location string
	Runner   Runner
	Opener   Opener
	Limiter  *Limiter // Paces remote fetches per host; nil disables
}

// Execute opens and analyzes the file, timing the run
func (j *FileJob) Execute(ctx context.Context) Result {
	res := &FileResult{Index: j.Index, Location: j.Location}

	if j.Limiter != nil && isRemote(j.Location) {
		if err := j.Limiter.Wait(ctx, j.Location); err != nil {
			res.Error = fmt.Errorf("rate limit: %w", err)
			return res
		}
	}

	start := time.Now()
	rc, name, err := j.Opener.Open(ctx, j.Location)
	if err != nil {
		res.Error = err
		return res
	}
	defer func() { _ = rc.Close() }()
	res.SampleName = name

	result, err := j.Runner.Analyze(ctx, rc, name)
	if err != nil {
		res.Error = err
		return res
	}
	result.Metadata.SetProcessingTime(time.Since(start))
	res.Result = result
	return res
}

// FileResult represents the result of a file job
type FileResult struct {
	Index      int
	Location   string
	SampleName string
	Result     *model.AnalysisResult
	Error      error
}

// GetError returns the error from the file result
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple files concurrently
type BatchProcessor struct {
	runner      Runner
	opener      Opener
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, opener Opener, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		opener:      opener,
		concurrency: concurrency,
	}
}

// LimitRemote paces fetches of remote locations per host
func (b *BatchProcessor) LimitRemote(limiter *Limiter) *BatchProcessor {
	b.limiter = limiter
	return b
}

// ProcessFiles analyzes every location and returns results in input order.
// Cancelling ctx stops the pool; unstarted files are reported as cancelled.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, locations []string) []*FileResult {
	if len(locations) == 0 {
		return []*FileResult{}
	}

	pool := NewPool(b.concurrency, len(locations))
	pool.Start()
	stop := context.AfterFunc(ctx, pool.Shutdown)
	defer stop()

	for i, loc := range locations {
		pool.Submit(&FileJob{
			Index:    i,
			Location: loc,
			Runner:   b.runner,
			Opener:   b.opener,
			Limiter:  b.limiter,
		})
	}

	results := pool.Wait()

	out := make([]*FileResult, len(locations))
	for _, r := range results {
		fr := r.(*FileResult)
		out[fr.Index] = fr
	}
	for i, fr := range out {
		if fr == nil {
			out[i] = &FileResult{Index: i, Location: locations[i], Error: fmt.Errorf("not started: %w", context.Cause(ctx))}
		}
	}
	return out
}

// ProcessManifests reads the manifests and analyzes every file they list
func (b *BatchProcessor) ProcessManifests(ctx context.Context, manifests ...string) ([]*FileResult, error) {
	locations, err := ReadManifests(ctx, manifests...)
	if err != nil {
		return nil, err
	}
	return b.ProcessFiles(ctx, locations), nil
}

// ReadManifests reads several manifests in parallel and merges them in
// argument order, dropping duplicates
func ReadManifests(ctx context.Context, manifests ...string) ([]string, error) {
	lists := make([][]string, len(manifests))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range manifests {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			locations, err := ReadManifest(path)
			if err != nil {
				return err
			}
			lists[i] = locations
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []string
	for _, list := range lists {
		for _, loc := range list {
			if !seen[loc] {
				seen[loc] = true
				merged = append(merged, loc)
			}
		}
	}
	return merged, nil
}

// ReadManifest reads file locations from a manifest (one per line).
// Relative paths are resolved against the manifest's directory.
func ReadManifest(manifestPath string) ([]string, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(manifestPath)
	var locations []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !isRemote(line) && !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			locations = append(locations, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	return locations, nil
}

// Summary counts successes and failures
func Summary(results []*FileResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Error != nil {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
