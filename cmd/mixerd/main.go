// main.go - Mixer daemon: runtime, relay endpoint, health and metrics.
//
// Boots the in-memory execution runtime with the mixer program, initializes
// the pool at the configured denomination, and exposes:
//   - the relay endpoint accepting encoded Withdraw operations
//   - /health and /metrics on the observability listener
//
// With use_real_prover set, the daemon compiles the withdraw circuit and
// generates or loads Groth16 keys under key_dir, so relayed proofs are
// verified for real; otherwise the deterministic fake pair is wired in.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mixer/internal/mixer"
	"mixer/internal/runtime"
	"mixer/internal/transactions/withdraw"
	"mixer/relay"
)

const version = "0.2.0"

func main() {
	configPath := flag.String("config", "mixerd.json", "path to config file")
	flag.Parse()

	stderrLog := zerolog.New(os.Stderr)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		stderrLog.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		stderrLog.Fatal().Err(err).Msg("config invalid")
	}

	log, closeLog, err := NewLogger(cfg)
	if err != nil {
		stderrLog.Fatal().Err(err).Msg("logger setup failed")
	}
	defer closeLog()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("mixerd exited with error")
	}
}

func run(cfg *Config, log zerolog.Logger) error {
	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		return err
	}

	rt := runtime.New(log)
	programID, err := runtime.NewAddress()
	if err != nil {
		return err
	}
	program := &runtime.MixerProgram{ID: programID, Verifier: verifier, Log: log}

	// Initialize the pool.
	err = rt.Execute(func(tx *runtime.Txn) error {
		return program.Process(tx, nil, mixer.EncodeInitialize(cfg.Denomination))
	})
	if err != nil {
		return err
	}
	log.Info().Uint64("denomination", cfg.Denomination).Msg("pool initialized")

	metrics := NewMetrics()
	health := NewHealthChecker(version)
	health.Register("runtime", func() error {
		if !rt.Exists(program.StateAddress()) {
			return errors.New("pool state account missing")
		}
		return nil
	})

	limiter := relay.NewRateLimiter(cfg.RateLimitTokens, cfg.RateLimitRefill,
		time.Duration(cfg.RateLimitPeriodSeconds)*time.Second)
	node := relay.NewNode("mixerd", cfg.RelayListen, rt, program, limiter, log)
	node.OnSubmission = func(accepted bool) {
		metrics.RecordRelayedSubmission()
		metrics.RecordWithdrawal(accepted)
	}
	if err := node.Start(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/health", health.Handler())
	mux.Handle("/metrics", metrics.Handler())
	obs := &http.Server{Addr: cfg.HTTPListen, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.HTTPListen).Msg("observability listening")
		if err := obs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("observability server stopped")
		}
	}()

	// Wait for shutdown.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := node.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("relay shutdown")
	}
	return obs.Shutdown(ctx)
}

// buildVerifier wires the proof-verification capability: real Groth16 when
// configured, the deterministic fake otherwise.
func buildVerifier(cfg *Config, log zerolog.Logger) (runtime.Verifier, error) {
	if !cfg.UseRealProver {
		log.Warn().Msg("using fake verifier; relayed proofs are not cryptographically checked")
		return withdraw.FakeVerifier{}, nil
	}
	if err := os.MkdirAll(cfg.KeyDir, 0755); err != nil {
		return nil, err
	}
	log.Info().Msg("compiling withdraw circuit")
	ccs, err := withdraw.CompileCircuit()
	if err != nil {
		return nil, err
	}
	_, vk, err := withdraw.SetupOrLoadKeys(ccs,
		filepath.Join(cfg.KeyDir, "withdraw_pk.bin"),
		filepath.Join(cfg.KeyDir, "withdraw_vk.bin"))
	if err != nil {
		return nil, err
	}
	return withdraw.NewGroth16Verifier(vk), nil
}
