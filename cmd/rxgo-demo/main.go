package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puppetlabs/leg/logging"
	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/internal/opt"
)

var log = logging.Builder().At("rxgo-demo").Build()

func main() {
	cfg := opt.NewConfig()

	if cfg.Debug {
		logging.SetLevel(log15.LvlDebug)
	}

	if err := run(cfg); err != nil {
		log.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *opt.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool := rxgo.NewPoolScheduler(rxgo.WithConcurrency(cfg.Workers), rxgo.WithName("producer"))
	defer pool.Close()

	loop := rxgo.NewEventLoop(rxgo.WithName("consumer"))
	defer loop.Close()

	var producer rxgo.Scheduler = pool
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()

		metrics, err := rxgo.NewSchedulerMetrics("producer", reg)
		if err != nil {
			return err
		}
		producer = rxgo.NewMonitoredScheduler(pool, metrics)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		server := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		log.Info("serving metrics", "addr", cfg.MetricsAddress)
	}

	start := time.Now()
	labels := rxgo.Map(rxgo.Range(cfg.Start, cfg.Count, producer), func(v int) (string, error) {
		return strconv.Itoa(v), nil
	})

	var failure error
	sub := rxgo.ObserveOnContext(labels, loop).Subscribe(rxgo.NewObserver[string](
		func(v string) {
			fmt.Println(v)
		},
		func(err error) {
			failure = err
		},
		func() {
			log.Debug("sequence completed", "loop", loop.ID())
		},
	))
	defer sub.Dispose()

	if err := loop.WaitIdle(ctx); err != nil {
		return err
	}

	log.Info("sequence observed", "count", cfg.Count, "elapsed", time.Since(start))

	if cfg.MetricsEnabled {
		log.Info("sequence done, serving metrics until interrupted")
		<-ctx.Done()
	}

	return failure
}
