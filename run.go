package delayq

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

// Run starts the workers, the scheduler and the ops server, and blocks until
// shutdown. Workers finish the job they hold before Run returns.
//
// Run returns nil on a signal or Stop. A worker stopping on its memory
// limit stops the whole application and Run returns queue.ErrMemoryLimit,
// so a supervisor can restart the process.
func (a *App) Run() error {
	base := a.baseCtx
	if base == nil {
		base = context.Background()
	}
	sigCtx, cancelSignals := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer cancelSignals()

	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	go func() {
		select {
		case <-a.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, hook := range a.startupHooks {
		if err := hook(ctx); err != nil {
			a.logger.Error("startup hook failed", slog.Any("error", err))
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.server.Addr != "" {
		ln, err := net.Listen("tcp", a.server.Addr)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.listener = ln
		a.mu.Unlock()

		g.Go(func() error {
			a.logger.Info("ops server starting", slog.String("address", ln.Addr().String()))
			if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(gctx), a.shutdownTimeout)
			defer done()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	for _, group := range a.workers {
		for i := range group.concurrency {
			w := a.newWorker(group)
			a.logger.Debug("starting worker", slog.String("queue", group.queue), slog.Int("index", i))
			g.Go(func() error {
				return w.Run(gctx)
			})
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
		a.logger.Info("scheduler started", slog.Int("entries", a.scheduler.Len()))
	}

	// keep the group alive when there is nothing else to wait for
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()
	if errors.Is(runErr, queue.ErrMemoryLimit) {
		a.logger.Warn("worker reached its memory limit, stopping")
	}

	a.logger.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer done()

	errs := []error{runErr}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, hook := range a.shutdownHooks {
		if err := hook(shutdownCtx); err != nil {
			a.logger.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("shutdown completed with errors", slog.Any("error", err))
		return err
	}
	a.logger.Info("shutdown completed")
	return nil
}

// Stop triggers a graceful shutdown. It is safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *App) newWorker(group workerGroup) *queue.Worker {
	opts := []queue.WorkerOption{queue.WithWorkerLogger(a.logger)}
	if a.recorder != nil {
		opts = append(opts, queue.WithRecorder(a.recorder))
	}
	opts = append(opts, group.opts...)
	opts = append(opts, queue.WithQueue(group.queue))
	return queue.NewWorker(a.queue, opts...)
}
