package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync and clean up in the background until interrupted",
		Long: `Run the background loops: a sync pass every --sync-interval and
housekeeping every cleanup interval. A pass also starts right away.

While running, a small HTTP endpoint on --metrics-addr serves:
  GET  /status   pending work and the last pass
  GET  /metrics  Prometheus metrics
  POST /sync     start a pass now`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cmd.OutOrStdout(), app)
		},
	}
}

// runDaemon blocks until ctx is done and every background pass has
// finished.
func runDaemon(ctx context.Context, out io.Writer, app *App) error {
	var srv *http.Server

	if addr := app.cfg.MetricsAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}

		reg := prometheus.NewRegistry()
		metrics.RegisterCollectors(reg)

		srv = &http.Server{Handler: newStatusRouter(app, reg), ReadHeaderTimeout: shutdownTimeout}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.log.Error(ctx, "status endpoint stopped", "error", err)
			}
		}()
		fmt.Fprintf(out, "Status endpoint on http://%s\n", ln.Addr())
	}

	app.Scheduler.Start(ctx)
	app.Scheduler.TriggerSync(ctx)
	fmt.Fprintln(out, "Running. Press Ctrl-C to stop.")

	<-ctx.Done()

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.log.Warn(ctx, "status endpoint shutdown", "error", err)
		}
	}
	app.Scheduler.Wait()

	fmt.Fprintln(out, "Stopped.")
	return nil
}

type passView struct {
	Status    string    `json:"status"`
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	Pending   int       `json:"pending"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

type statusView struct {
	Online     bool      `json:"online"`
	Pending    int       `json:"pending"`
	HasPending bool      `json:"has_pending"`
	LastPass   *passView `json:"last_pass,omitempty"`
}

func newStatusRouter(app *App, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/status", func(c *gin.Context) {
		ctx := c.Request.Context()

		pending, err := app.Capture.PendingCount(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		view := statusView{
			Online:     app.Online(ctx),
			Pending:    pending,
			HasPending: pending > 0,
		}
		if res, ok := app.LastPass(); ok {
			view.LastPass = &passView{
				Status:    string(res.Status),
				Synced:    res.Synced,
				Failed:    res.Failed,
				Pending:   res.Pending,
				StartedAt: res.StartedAt,
			}
			if res.Err != nil {
				view.LastPass.Error = res.Err.Error()
			}
		}
		c.JSON(http.StatusOK, view)
	})

	r.POST("/sync", func(c *gin.Context) {
		app.Scheduler.TriggerSync(c.Request.Context())
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
	})

	return r
}
