// Package pipeline runs the summarization job graph: intake, acquire,
// transcribe, summarize, and finalize workers connected by buffered
// queues, plus one error consumer that fails crashed jobs without
// stopping the rest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/vidsum/pkg/config"
	"github.com/codeready-toolchain/vidsum/pkg/jobs"
	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// ErrIntakeFull is returned by Enqueue when the intake queue cannot
// take another video id.
var ErrIntakeFull = errors.New("intake queue is full")

// Stage names used in failure reports and logs.
const (
	StageAcquire    = "acquire"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
)

// StageError reports one job failing in one stage.
type StageError struct {
	Stage string
	Job   *jobs.Job
	Err   error
}

// Acquirer fetches captions or audio for a video. hadCaptions = true
// means the transcript artifact is already written and the transcribe
// stage can be skipped.
type Acquirer interface {
	Acquire(ctx context.Context, videoID string, update func(func(*models.Job))) (hadCaptions bool, err error)
}

// Transcriber turns the audio artifact into the transcript artifact.
type Transcriber interface {
	Transcribe(ctx context.Context, videoID string, update func(func(*models.Job))) error
}

// Summarizer turns the transcript artifact into the summary artifact.
type Summarizer interface {
	Summarize(ctx context.Context, videoID string, update func(func(*models.Job))) error
}

// FailureStore records terminal failure state across restarts.
// Implemented by the video store.
type FailureStore interface {
	SetJobFailed(videoID string, failed bool, errorMsg string)
	ClearJobFailure(videoID string)
}

// Pipeline owns the worker goroutines and the queues between them.
// The acquire and transcribe stages each process one job at a time;
// summarization runs with unbounded parallelism.
type Pipeline struct {
	registry *jobs.Registry
	store    FailureStore

	acquirer    Acquirer
	transcriber Transcriber
	summarizer  Summarizer

	intakeCh       chan string
	pendingCh      chan *jobs.Job
	downloadedCh   chan *jobs.Job
	summarizableCh chan *jobs.Job
	doneCh         chan *jobs.Job
	errCh          chan StageError

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a pipeline. Start must be called before ids flow.
func New(cfg config.PipelineConfig, registry *jobs.Registry, store FailureStore,
	acquirer Acquirer, transcriber Transcriber, summarizer Summarizer) *Pipeline {
	return &Pipeline{
		registry:    registry,
		store:       store,
		acquirer:    acquirer,
		transcriber: transcriber,
		summarizer:  summarizer,

		intakeCh:       make(chan string, cfg.QueueCapacity),
		pendingCh:      make(chan *jobs.Job, cfg.QueueCapacity),
		downloadedCh:   make(chan *jobs.Job, cfg.QueueCapacity),
		summarizableCh: make(chan *jobs.Job, cfg.QueueCapacity),
		doneCh:         make(chan *jobs.Job, cfg.QueueCapacity),
		errCh:          make(chan StageError, cfg.ErrorCapacity),

		stopCh: make(chan struct{}),
	}
}

// Start launches the stage workers.
func (p *Pipeline) Start() {
	workers := []func(){
		p.runIntake,
		p.runAcquire,
		p.runTranscribe,
		p.runSummarize,
		p.runFinalize,
		p.runErrorConsumer,
	}
	for _, worker := range workers {
		p.wg.Add(1)
		go func(run func()) {
			defer p.wg.Done()
			run()
		}(worker)
	}
	slog.Info("Pipeline started", "intake_capacity", cap(p.intakeCh))
}

// Enqueue submits a video id for processing without blocking; a full
// intake queue is reported to the caller instead.
func (p *Pipeline) Enqueue(videoID string) error {
	select {
	case p.intakeCh <- videoID:
		return nil
	default:
		return ErrIntakeFull
	}
}

// Stop halts the workers and waits for in-flight stage work to finish,
// bounded by ctx. Queued but unstarted jobs are dropped; their
// artifacts let a retried job resume where it left off.
func (p *Pipeline) Stop(ctx context.Context) {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Pipeline stopped")
	case <-ctx.Done():
		slog.Warn("Pipeline shutdown timed out, abandoning in-flight work")
	}
}

// runIntake consumes raw video ids, creating or reviving their jobs.
// Ids whose job is already live are dropped here.
func (p *Pipeline) runIntake() {
	for {
		select {
		case <-p.stopCh:
			return
		case videoID := <-p.intakeCh:
			existed, job := p.registry.CreateOrRevive(videoID)
			if existed {
				slog.Info("Video already has a live job, ignoring request", "video_id", videoID)
				continue
			}
			slog.Info("Video queued for summarization", "video_id", videoID)
			p.pendingCh <- job
		}
	}
}

// runAcquire drives caption probing and audio download, one job at a
// time.
func (p *Pipeline) runAcquire() {
	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.pendingCh:
			p.acquireOne(job)
		}
	}
}

func (p *Pipeline) acquireOne(job *jobs.Job) {
	slog.Info("Acquiring video", "video_id", job.VideoID())

	var hadCaptions bool
	ok := p.guard(StageAcquire, job, func() error {
		var err error
		hadCaptions, err = p.acquirer.Acquire(context.Background(), job.VideoID(), p.updater(job))
		return err
	})
	if !ok {
		return
	}

	if hadCaptions {
		// Captions already produced the transcript artifact.
		p.summarizableCh <- job
	} else {
		p.downloadedCh <- job
	}
}

// runTranscribe feeds downloaded audio through the transcriber, one
// job at a time; the speech-to-text service rate-limits this caller.
func (p *Pipeline) runTranscribe() {
	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.downloadedCh:
			ok := p.guard(StageTranscribe, job, func() error {
				return p.transcriber.Transcribe(context.Background(), job.VideoID(), p.updater(job))
			})
			if ok {
				p.summarizableCh <- job
			}
		}
	}
}

// runSummarize dispatches one goroutine per job.
func (p *Pipeline) runSummarize() {
	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.summarizableCh:
			p.wg.Add(1)
			go func(job *jobs.Job) {
				defer p.wg.Done()
				p.summarizeOne(job)
			}(job)
		}
	}
}

func (p *Pipeline) summarizeOne(job *jobs.Job) {
	slog.Info("Summarizing video", "video_id", job.VideoID())
	p.registry.SetStatus(job, models.StatusSummarizing)

	ok := p.guard(StageSummarize, job, func() error {
		return p.summarizer.Summarize(context.Background(), job.VideoID(), p.updater(job))
	})
	if ok {
		p.doneCh <- job
	}
}

// runFinalize marks completed jobs finished and clears their durable
// failure flag.
func (p *Pipeline) runFinalize() {
	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.doneCh:
			slog.Info("All stages completed", "video_id", job.VideoID())
			p.store.ClearJobFailure(job.VideoID())
			p.registry.SetStatus(job, models.StatusFinished)
		}
	}
}

// runErrorConsumer fails jobs whose stage reported an error and
// records the failure durably so it survives a restart.
func (p *Pipeline) runErrorConsumer() {
	for {
		select {
		case <-p.stopCh:
			return
		case stageErr := <-p.errCh:
			slog.Error("Job failed",
				"video_id", stageErr.Job.VideoID(),
				"stage", stageErr.Stage,
				"error", stageErr.Err)

			// Record the failure durably before broadcasting it, so
			// anyone who observes the failed status finds it on disk.
			p.store.SetJobFailed(stageErr.Job.VideoID(), true, stageErr.Err.Error())
			p.registry.Mutate(stageErr.Job, func(data *models.Job) {
				data.Status = models.StatusFailed
				data.Error = stageErr.Err.Error()
			})
		}
	}
}

// guard runs one stage's work for one job, converting a returned error
// or a panic into a stage error. It reports whether the job may move
// to the next stage.
func (p *Pipeline) guard(stage string, job *jobs.Job, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.errCh <- StageError{Stage: stage, Job: job, Err: fmt.Errorf("%v", r)}
			ok = false
		}
	}()

	if err := fn(); err != nil {
		p.errCh <- StageError{Stage: stage, Job: job, Err: err}
		return false
	}
	return true
}

// updater adapts registry mutation to the closure shape the stage
// adapters take.
func (p *Pipeline) updater(job *jobs.Job) func(func(*models.Job)) {
	return func(fn func(*models.Job)) {
		p.registry.Mutate(job, fn)
	}
}
