package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tickeasy/internal/api"
	"github.com/joescharf/tickeasy/internal/daemon"
	"github.com/joescharf/tickeasy/internal/metrics"
)

const (
	shutdownTimeout = 10 * time.Second
	stopTimeout     = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console HTTP server in the foreground",
	Long: `Run the console HTTP server.

The server adopts cross-domain sign-in handoffs on any page, guards the
dashboard routes, and exposes the dashboard API plus /healthz and /metrics.
By default it listens on port 8080. Use --port to change it, or
'serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.StateFile {
	return daemon.NewStateFile(filepath.Join(viper.GetString("state_dir"), "tickeasy-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "tickeasy-serve.log")
}

func serveAddr() string {
	return fmt.Sprintf(":%d", viper.GetInt("serve.port"))
}

// newConsoleHandler wires the HTTP surface over the backend and review engine.
func newConsoleHandler(m *metrics.Metrics) (http.Handler, error) {
	client := newBackend()
	engine, reader, err := newEngine(client, m)
	if err != nil {
		return nil, err
	}
	srv := api.NewServer(api.Deps{
		Remote:  client,
		Reader:  reader,
		Engine:  engine,
		Metrics: m,
		Logger:  getLogger(),
	}, guardConfig())
	return srv.Router(), nil
}

func serveRun() error {
	pf := pidFile()
	if st, running := pf.Running(); running && st.PID != os.Getpid() {
		return fmt.Errorf("server already running (pid %d)", st.PID)
	}

	handler, err := newConsoleHandler(metrics.New())
	if err != nil {
		return err
	}

	addr := serveAddr()
	if dryRun {
		ui.DryRunMsg("Would serve the console at http://localhost%s", addr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(pf.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := pf.WriteCurrent(addr); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	defer func() { _ = pf.Remove() }()

	ctx, stop := signal.NotifyContext(cmdContext(), shutdownSignals()...)
	defer stop()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	ui.Info("Serving console at http://localhost%s", addr)
	getLogger().Info("console server started", "addr", addr, "api", viper.GetString("api.base_url"))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	ui.Info("Server stopped")
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if st, running := pf.Running(); running {
		return fmt.Errorf("server already running (pid %d)", st.PID)
	}

	if dryRun {
		ui.DryRunMsg("Would start the console server in the background on %s", serveAddr())
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("serve.port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if verbose {
		args = append(args, "--verbose")
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	// The child rewrites this with its address once it is listening.
	if err := pf.Write(daemon.State{PID: child.Process.Pid, Addr: serveAddr(), StartedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Server started (pid %d) on http://localhost%s", child.Process.Pid, serveAddr())
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	st, running := pf.Running()
	if !running {
		if st != nil {
			_ = pf.Remove()
		}
		return fmt.Errorf("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", st.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if _, alive := pf.Running(); !alive {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if _, alive := pf.Running(); alive {
		ui.Warning("Server did not exit in %s, killing", stopTimeout)
		_ = pf.Signal(sigKILL())
	}

	_ = pf.Remove()
	ui.Success("Server stopped (pid %d)", st.PID)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	st, running := pf.Running()
	if !running {
		if st != nil {
			ui.VerboseLog("Removing stale state file for pid %d", st.PID)
			_ = pf.Remove()
		}
		ui.Info("Server not running")
		return nil
	}

	fmt.Fprintf(ui.Out, "%-8s %s\n", "Status:", "running")
	fmt.Fprintf(ui.Out, "%-8s %d\n", "PID:", st.PID)
	if st.Addr != "" {
		fmt.Fprintf(ui.Out, "%-8s http://localhost%s\n", "Address:", st.Addr)
	}
	if up := st.Uptime(); up > 0 {
		fmt.Fprintf(ui.Out, "%-8s %s\n", "Uptime:", up.Round(time.Second))
	}
	fmt.Fprintf(ui.Out, "%-8s %s\n", "Logs:", serveLogPath())
	return nil
}
