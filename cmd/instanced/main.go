package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"instanced/internal/backend"
	"instanced/internal/config"
	"instanced/internal/httpapi"
	"instanced/internal/instance"
	"instanced/internal/registry"
	"instanced/pkg/types"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		log.Fatalf("instanced: %v", err)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		cfgPath   string
		addr      string
		modelsDir string
		backendID string
		gpus      []int
		blocking  bool
		metrics   bool
		nice      int
	)
	root := &cobra.Command{
		Use:           "instanced",
		Short:         "Builds and serves per-device model instance sets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				c, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = c
			}
			// Flags win over file values when set explicitly.
			if cmd.Flags().Changed("addr") || cfg.Addr == "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("models-dir") || cfg.ModelsDir == "" {
				cfg.ModelsDir = modelsDir
			}
			if cmd.Flags().Changed("backend") || cfg.Backend == "" {
				cfg.Backend = backendID
			}
			if cmd.Flags().Changed("gpus") {
				cfg.GPUs = gpus
			}
			if cmd.Flags().Changed("device-blocking") {
				cfg.DeviceBlocking = blocking
			}
			if cmd.Flags().Changed("metrics") {
				cfg.EnableMetrics = metrics
			}
			if cmd.Flags().Changed("nice") {
				cfg.Nice = nice
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", os.Getenv("INSTANCED_CONFIG"), "Path to a yaml/json/toml config file")
	root.Flags().StringVar(&addr, "addr", envOr("INSTANCED_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	root.Flags().StringVar(&modelsDir, "models-dir", "~/models/configs", "Directory of per-model config files")
	root.Flags().StringVar(&backendID, "backend", "stub", "Execution backend: stub|llama")
	root.Flags().IntSliceVar(&gpus, "gpus", nil, "Available GPU device ids")
	root.Flags().BoolVar(&blocking, "device-blocking", false, "Serialize equivalent GPU instances onto one thread per device")
	root.Flags().BoolVar(&metrics, "metrics", true, "Attach per-instance prometheus reporters")
	root.Flags().IntVar(&nice, "nice", 0, "Thread priority hint passed to device binding")
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(cfg config.Config) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	httpapi.SetLogger(logger)

	be, err := buildBackend(cfg.Backend)
	if err != nil {
		return err
	}

	configs, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return err
	}
	opts := instance.Options{
		Logger:         logger,
		EnableMetrics:  cfg.EnableMetrics,
		HostPolicies:   hostPolicies(cfg),
		BackendConfig:  cfg.BackendConfig,
		AvailableGPUs:  cfg.GPUs,
		DeviceBlocking: cfg.DeviceBlocking,
		Nice:           cfg.Nice,
	}
	srv := newStatusService()
	for _, mc := range configs {
		mdl, err := instance.NewModel(mc, be, opts)
		if err != nil {
			return err
		}
		if err := mdl.SetInstances(); err != nil {
			srv.close()
			return err
		}
		srv.add(mdl)
		logger.Info().Str("model", mc.Name).Int("instances", len(mdl.Instances())).Msg("model ready")
	}
	defer srv.close()

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(srv)}
	go func() {
		log.Printf("instanced listening on %s (models dir: %s)", cfg.Addr, cfg.ModelsDir)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	return nil
}

func buildBackend(id string) (backend.Backend, error) {
	switch id {
	case "", "stub":
		return backend.NewStub(), nil
	case "llama":
		return backend.NewLlama()
	default:
		return nil, &unknownBackendError{id: id}
	}
}

type unknownBackendError struct{ id string }

func (e *unknownBackendError) Error() string { return "unknown backend: " + e.id }

func hostPolicies(cfg config.Config) types.HostPolicyMap {
	if len(cfg.HostPolicies) == 0 {
		return nil
	}
	out := make(types.HostPolicyMap, len(cfg.HostPolicies))
	for name, settings := range cfg.HostPolicies {
		out[name] = types.HostPolicy(settings)
	}
	return out
}
