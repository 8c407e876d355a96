package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
)

func newWatchCmd(opts *cliOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and print transitions",
		Long: `Restore the session and keep it refreshed until interrupted, printing every
state transition. With --metrics-addr the session counters are served for Prometheus
at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			o, err := opts.open(cmd, func(cfg *goSession.Config) {
				if metricsAddr != "" {
					cfg.Metrics.Enabled = true
					cfg.Metrics.EnableLatencyHistograms = true
				}
			})
			if err != nil {
				return err
			}
			defer o.Close()

			w := cmd.OutOrStdout()
			unsubscribe := o.Subscribe(func(t goSession.Transition) {
				dimColor.Fprintf(w, "%s ", t.Timestamp.Format(time.RFC3339))
				fmt.Fprintf(w, "%s: ", t.Type)
				printState(w, t.Next)
			})
			defer unsubscribe()

			printState(w, o.State())

			if metricsAddr != "" {
				handler, err := promexport.Handler(o)
				if err != nil {
					return err
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", handler)
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errColor.Fprintf(cmd.ErrOrStderr(), "metrics server: %v\n", err)
						stop()
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
