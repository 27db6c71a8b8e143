package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/adiwarsito/ulet"
)

func probeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run all targets from the config file once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			return runProbes(cmd.Context(), cfg, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "uletprobe.yaml", "path to the probe config file")
	return cmd
}

// runProbes builds a client from cfg and exercises every target once,
// writing a one-line summary per target to out. It fails when any target
// fails.
func runProbes(ctx context.Context, cfg *Config, out io.Writer) error {
	opts := []ulet.Option{
		ulet.WithTimeout(cfg.timeout),
		ulet.WithMaxRetries(cfg.Retries),
		ulet.WithRetryDelay(cfg.retryDelay),
		ulet.WithCache(cfg.cacheTTL),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ulet.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Debug {
		opts = append(opts, ulet.WithSimpleLogger())
	}
	if cfg.MetricsAddr != "" {
		opts = append(opts, ulet.WithMetrics())
	}

	client := ulet.New(opts...)
	defer client.Close()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	failed := 0
	for _, target := range cfg.Targets {
		name := target.Name
		if name == "" {
			name = target.URL
		}

		start := time.Now()
		resp, err := runTarget(ctx, client, target)
		elapsed := time.Since(start).Round(time.Millisecond)

		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v (%v)\n", name, err, elapsed)
			continue
		}
		source := "network"
		if resp.FromCache {
			source = "cache"
		}
		fmt.Fprintf(out, "OK   %s: %s, %d bytes from %s (%v)\n", name, resp.Status, len(resp.Body), source, elapsed)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(cfg.Targets))
	}
	return nil
}

func runTarget(ctx context.Context, client *ulet.Client, target Target) (*ulet.Response, error) {
	switch target.Method {
	case "", "GET":
		if target.Cache {
			return client.Get(ctx, target.URL)
		}
		return client.Get(ctx, target.URL, ulet.WithNoCache())
	case "POST":
		return client.Post(ctx, target.URL, target.Body)
	case "PUT":
		return client.Put(ctx, target.URL, target.Body)
	case "DELETE":
		return client.Delete(ctx, target.URL)
	default:
		return nil, fmt.Errorf("unsupported method %q", target.Method)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}
