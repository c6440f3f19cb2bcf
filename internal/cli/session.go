package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/realmbind/internal/config"
	"github.com/roach88/realmbind/internal/engine"
	"github.com/roach88/realmbind/internal/realm"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/store"
)

// session is one realm opened from the config file. The engine runs on its
// own loop goroutine and writes commits through to the store.
type session struct {
	realm     *realm.Realm
	formatter *OutputFormatter
	registry  *prometheus.Registry
	store     *store.Store
	loop      *engine.Loop
	cancel    context.CancelFunc
	done      chan error
}

// openSession loads the config and schema and opens the realm. Failures are
// already printed when it returns an error.
func openSession(opts *RootOptions, cmd *cobra.Command, formatter *OutputFormatter) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	formatter.VerboseLog("Using config %s", opts.Config)

	set, errs := LoadSchema(cfg.Schema)
	if len(errs) > 0 {
		return nil, outputSchemaErrors(formatter, "Schema failed to load", ExitCommandError, errs)
	}

	logger := opts.logger(cmd, cfg.Level())
	s := &session{formatter: formatter, registry: prometheus.NewRegistry(), done: make(chan error, 1)}

	memOpts := []engine.MemoryOption{engine.WithLogger(logger)}
	if !cfg.InMemory {
		if s.store, err = store.Open(cfg.Store); err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("opening store %s: %v", cfg.Store, err), nil)
		}
		memOpts = append(memOpts, engine.WithPersister(s.store))
		formatter.VerboseLog("Using store %s", cfg.Store)
	}

	metrics, err := engine.NewMetrics(s.registry)
	if err != nil {
		s.closeStore()
		return nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	s.loop = engine.NewLoop(engine.Instrument(engine.NewMemory(memOpts...), metrics), logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go func() { s.done <- s.loop.Run(ctx) }()

	defs := make([]schema.Definition, 0, set.Len())
	for _, t := range set.All() {
		defs = append(defs, t)
	}
	s.realm, err = realm.Open(realm.Config{Schema: defs, Path: cfg.Path, InMemory: cfg.InMemory},
		realm.WithEngine(s.loop), realm.WithLogger(logger))
	if err != nil {
		s.shutdown()
		return nil, s.fail(err)
	}
	formatter.VerboseLog("Opened %s", cfg.Path)
	return s, nil
}

// Close closes the realm, stops the loop and closes the store.
func (s *session) Close() error {
	err := s.realm.Close()
	s.logMetrics()
	return errors.Join(err, s.shutdown())
}

func (s *session) shutdown() error {
	s.loop.Stop()
	err := <-s.done
	s.cancel()
	return errors.Join(err, s.closeStore())
}

func (s *session) closeStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// fail prints a realm error and returns an ExitFailure.
func (s *session) fail(err error) error {
	return s.formatter.Fail(ExitFailure, realmErrorCode(err), err.Error(), nil)
}

func (s *session) logMetrics() {
	if !s.formatter.Verbose {
		return
	}
	families, err := s.registry.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		if mf.GetName() != "realmbind_engine_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var op, code string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "operation":
					op = l.GetValue()
				case "code":
					code = l.GetValue()
				}
			}
			s.formatter.VerboseLog("engine %s %s: %.0f call(s)", op, code, m.GetCounter().GetValue())
		}
	}
}

func realmErrorCode(err error) string {
	switch {
	case errors.Is(err, realm.ErrState):
		return ErrCodeState
	case errors.Is(err, realm.ErrSchema):
		return ErrCodeSchema
	case errors.Is(err, realm.ErrTransaction):
		return ErrCodeTransaction
	case errors.Is(err, realm.ErrType):
		return ErrCodeType
	case errors.Is(err, realm.ErrIndex):
		return ErrCodeIndex
	}
	return ErrCodeGeneric
}
