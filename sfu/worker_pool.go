package sfu

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/akinalp/reson8/logging"
)

// worker is one logical SFU worker. reson8 runs the media plane in-process
// (no separate worker subprocess the way mediasoup forks one per CPU), so a
// worker here is a supervised goroutine slot: routers are assigned to
// workers round-robin and the worker id is recorded on the Router (router
// work itself runs on the caller's goroutine), and an unrecovered panic
// inside a worker's slot is treated
// as fatal to the whole process — losing part of the media plane is not a
// condition the server runs through.
type worker struct {
	id    int
	alive atomic.Bool
}

// workerPool spawns one worker per logical CPU at startup and hands them
// out round-robin as routers are created.
type workerPool struct {
	workers []*worker
	next    atomic.Uint64
	group   *errgroup.Group
	ctx     context.Context
}

func newWorkerPool(ctx context.Context) *workerPool {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	pool := &workerPool{workers: make([]*worker, n), group: g, ctx: gctx}

	for i := 0; i < n; i++ {
		w := &worker{id: i}
		w.alive.Store(true)
		pool.workers[i] = w

		g.Go(func() (err error) {
			defer func() {
				w.alive.Store(false)
				if r := recover(); r != nil {
					logging.L().Sugar().Fatalf("sfu worker %d died: %v", w.id, r)
				}
			}()
			<-gctx.Done()
			return gctx.Err()
		})
	}

	return pool
}

// assign picks the next worker round-robin. The returned id is recorded on
// the Router purely for observability — all work still runs on the
// caller's goroutine, matching reson8's single-process model.
func (p *workerPool) assign() int {
	idx := p.next.Add(1) - 1
	return int(idx % uint64(len(p.workers)))
}

// fatalOnWorkerLoss exits the process with non-zero status the instant
// any worker's supervised goroutine reports a terminal error.
func (p *workerPool) fatalOnWorkerLoss() {
	if err := p.group.Wait(); err != nil && err != context.Canceled {
		logging.L().Sugar().Fatalf("sfu worker pool terminated: %v", err)
		os.Exit(1)
	}
}
