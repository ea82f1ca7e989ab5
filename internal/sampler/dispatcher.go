package sampler

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Summary reports the outcome of one dispatcher run. Failed counts both
// frames that could not be decoded and accepted frames whose write failed;
// Records holds the files that actually made it to the sink, in sequence
// order.
type Summary struct {
	Attempted int
	Accepted  int
	Rejected  int
	Failed    int
	Records   []Record
}

// DispatcherConfig tunes the worker pool. Zero values fall back to the
// number of CPUs for Workers and twice that for QueueDepth.
type DispatcherConfig struct {
	Scale      float64
	Workers    int
	QueueDepth int
}

// Dispatcher drives the sampling pipeline: it walks the grid, fetches each
// frame, feeds it through the gate in grid order, and hands accepted frames
// to a pool of workers that resize and write them. Fetch and gate run in a
// single sequential stage, so the gate sees candidates strictly in
// timestamp order; resize and write for accepted frames run in parallel and
// may complete out of order. The task channel is bounded, which caps the
// number of decoded frames held in memory regardless of video length.
type Dispatcher struct {
	src    FrameSource
	gate   *Gate
	sink   Sink
	cfg    DispatcherConfig
	logger *zap.Logger
}

func NewDispatcher(src FrameSource, gate *Gate, sink Sink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 2 * cfg.Workers
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1.0
	}
	return &Dispatcher{src: src, gate: gate, sink: sink, cfg: cfg, logger: logger}
}

type task struct {
	seq   int
	frame *Frame
}

// Run executes the pipeline over the grid. Scheduling stops at source
// exhaustion or context cancellation; already-submitted tasks still drain.
// Per-frame decode and write failures are logged and counted, never fatal.
func (d *Dispatcher) Run(ctx context.Context, grid Grid) (Summary, error) {
	var (
		sum   Summary
		mu    sync.Mutex
		wg    sync.WaitGroup
		tasks = make(chan task, d.cfg.QueueDepth)
	)

	d.logger.Info("scheduling frames",
		zap.Int("candidates", grid.Count()),
		zap.Int("workers", d.cfg.Workers),
		zap.Float64("start", grid.Start),
		zap.Float64("end", grid.End),
		zap.Float64("step", grid.Step),
	)

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				out := Resize(t.frame.Image, d.cfg.Scale)
				path, err := d.sink.Write(t.seq, out)
				if err != nil {
					d.logger.Error("frame write failed",
						zap.Int("seq", t.seq),
						zap.Float64("timestamp", t.frame.Timestamp),
						zap.Error(err),
					)
					mu.Lock()
					sum.Failed++
					mu.Unlock()
					continue
				}
				d.logger.Debug("frame written", zap.Int("seq", t.seq), zap.String("path", path))
				mu.Lock()
				sum.Records = append(sum.Records, Record{Seq: t.seq, Timestamp: t.frame.Timestamp, Path: path})
				mu.Unlock()
			}
		}()
	}

	// Sequential stage: fetch and gate in grid order.
scheduling:
	for i := 0; i < grid.Count(); i++ {
		if ctx.Err() != nil {
			break
		}
		ts := grid.At(i)
		frame, err := d.src.Fetch(ctx, ts)
		if err != nil {
			if errors.Is(err, ErrSourceExhausted) {
				d.logger.Info("source exhausted, stopping scheduling",
					zap.Float64("timestamp", ts),
					zap.Int("scheduled", i),
				)
				break
			}
			d.logger.Warn("frame decode failed",
				zap.Int("seq", i),
				zap.Float64("timestamp", ts),
				zap.Error(err),
			)
			mu.Lock()
			sum.Attempted++
			sum.Failed++
			mu.Unlock()
			continue
		}

		accepted := d.gate.Evaluate(frame)
		mu.Lock()
		sum.Attempted++
		if accepted {
			sum.Accepted++
		} else {
			sum.Rejected++
		}
		mu.Unlock()
		if !accepted {
			continue
		}

		select {
		case tasks <- task{seq: i, frame: frame}:
		case <-ctx.Done():
			break scheduling
		}
	}

	close(tasks)
	d.logger.Debug("draining workers")
	wg.Wait()

	sort.Slice(sum.Records, func(a, b int) bool { return sum.Records[a].Seq < sum.Records[b].Seq })

	d.logger.Info("sampling run finished",
		zap.Int("attempted", sum.Attempted),
		zap.Int("accepted", sum.Accepted),
		zap.Int("rejected", sum.Rejected),
		zap.Int("failed", sum.Failed),
	)
	return sum, ctx.Err()
}
