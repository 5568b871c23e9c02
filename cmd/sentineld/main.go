// Command sentineld is the Sentinel Runtime Core entrypoint: it loads
// configuration, wires the event bus, ledger, gateway, fusion pipeline,
// HIL sensor interfaces, calibrator, worker pool, and system controller
// into one running process, and serves health/metrics/status over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/ratelimit"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/app"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/calibration"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/component"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/config"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/controller"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/errorfabric"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/fusion"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/gateway"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/hil"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/httpstatus"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/peernet"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/permissions"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/telemetry"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/workerpool"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "optional .env overlay for SENTINEL_* overrides")
	httpAddr := flag.String("http-addr", ":8090", "health/metrics/status listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentineld: configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("sentineld", string(cfg.LogLevel), "json")
	logger.Info(context.Background(), "starting sentinel runtime core", nil)

	bus := eventbus.New(eventbus.DefaultCapacity, logger)
	fabric := errorfabric.New(bus, logger)

	signer, err := ledger.NewEd25519Signer("sentineld")
	if err != nil {
		logger.WithError(err).Fatal("generate ledger signing key")
	}

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.DifficultyBits = uint8(cfg.DifficultyBits)
	chain := ledger.New(ledgerCfg, signer, bus, logger)

	rateBackstop := ratelimit.NewPerSource(ratelimit.DefaultConfig())
	gw := gateway.New(chain, signer, permissions.DefaultTable(), rateBackstop, bus, logger)

	registry := component.NewRegistry(bus, logger)
	registry.OnComponentError = func(id string, desc component.Descriptor, err error) {
		fabric.Dispatch(context.Background(), errorfabric.Classify(err))
	}

	network := peernet.NewInMemory("sentineld", peernet.NewHub())

	collectors := telemetry.New(nil)

	ctrlCfg := controller.DefaultConfig()
	ctrlCfg.ProcessingRateHz = cfg.AIProcessingRateHz
	ctrlCfg.DifficultyBits = uint8(cfg.DifficultyBits)
	ctrl := controller.New(ctrlCfg, registry, chain, network, gw, fabric, bus, logger)

	pool := workerpool.New(context.Background(), 0, 0, bus, "sentineld")

	pipeline := fusion.NewPipeline("sentineld", bus, defaultSignatures())
	sources := []app.SensorSource{
		{Kind: fusion.SensorLiDAR, Interface: hil.NewSimulated("lidar-0", 50, randomSource(0.4), bus)},
		{Kind: fusion.SensorMagnetic, Interface: hil.NewSimulated("magnetic-0", 20, randomSource(0.2), bus)},
		{Kind: fusion.SensorSpectral, Interface: hil.NewSimulated("spectral-0", 10, randomSource(0.6), bus)},
	}
	fusionNode := app.NewFusionNode(sources, pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := registry.Register(ctx, fusionNode); err != nil {
		logger.WithError(err).Fatal("register fusion node")
	}

	if err := runCalibration(ctx, sources, bus); err != nil {
		logger.WithError(err).Warn("sensor alignment calibration failed, continuing with identity transforms")
	}

	statusServer := httpstatus.New(registry)
	httpServer := &http.Server{Addr: *httpAddr, Handler: statusServer}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("status server exited")
		}
	}()

	ctrl.Start(ctx)
	statusServer.MarkReady()

	go reportUptime(ctx, collectors, gw, time.Now())
	go submitMiningJobs(ctx, pool, chain, collectors)

	logger.Info(context.Background(), "sentinel runtime core is ready", nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info(context.Background(), "shutdown signal received, draining", nil)
	statusServer.MarkNotReady()
	ctrl.Stop()
	pool.Close()
	pool.Wait()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	for _, err := range registry.ShutdownAll(shutdownCtx) {
		logger.WithError(err).Warn("component shutdown error")
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info(context.Background(), "sentinel runtime core stopped", nil)
}

func randomSource(bias float64) hil.SampleSource {
	return func(ctx context.Context) ([3]float64, float64, map[string][]float64, error) {
		pos := [3]float64{rand.Float64() * 10, rand.Float64() * 10, rand.Float64() * 10}
		value := bias + rand.Float64()*0.1
		return pos, value, map[string][]float64{"thermal": {value}, "em": {value * 0.5}}, nil
	}
}

func defaultSignatures() []fusion.Signature {
	return []fusion.Signature{
		{
			Name: "unknown-contact",
			Features: fusion.FusedFeatures{
				Thermal:   []float64{0.5},
				EM:        []float64{0.3},
				Geometric: []float64{0.5},
				Spectral:  []float64{0.5},
			},
		},
	}
}

func runCalibration(ctx context.Context, sources []app.SensorSource, bus *eventbus.Bus) error {
	if len(sources) < 2 {
		return nil
	}
	names := make([]string, len(sources))
	samples := make(map[string][]calibration.Sample, len(sources))
	for i, src := range sources {
		names[i] = string(src.Kind)
		points := make([]calibration.Sample, 0, calibration.MinSamplesPerSensor)
		for j := 0; j < calibration.MinSamplesPerSensor; j++ {
			p := [3]float64{float64(j), float64(j) * 0.5, float64(j) * 0.25}
			points = append(points, calibration.Sample{Reference: p, Sensor: p})
		}
		samples[names[i]] = points
	}
	cal := calibration.NewCalibrator(bus)
	_, err := cal.PerformAlignment(ctx, names, samples)
	return err
}

func reportUptime(ctx context.Context, collectors *telemetry.Collectors, gw *gateway.Gateway, startedAt time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collectors.RecordUptime(startedAt)
			collectors.SyncCountermeasures(gw.Countermeasures())
		}
	}
}

func submitMiningJobs(ctx context.Context, pool *workerpool.Pool, chain *ledger.Ledger, collectors *telemetry.Collectors) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if chain.PendingLen() == 0 {
				continue
			}
			_ = pool.Submit(ctx, workerpool.Job{
				Name: "mine-block",
				Run: func(ctx context.Context) error {
					start := time.Now()
					_, err := chain.MineBlock(ctx)
					outcome := "success"
					if err != nil {
						outcome = "rejected"
					}
					collectors.RecordBlock(outcome, time.Since(start))
					return err
				},
			})
		}
	}
}
