package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/observerai/companion/internal/daemon"
	"github.com/observerai/companion/pkg/gateway"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show companion status",
	Long:  `Show whether the companion is running and, if so, its gateway health.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pid, err := daemon.ReadPIDFile(opts.PIDFile())
	if err != nil || !daemon.ProcessAlive(pid) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "PID: %d\n", pid)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()

	health, err := fetchHealth(ctx, healthURL(opts.Listen))
	if err != nil {
		fmt.Fprintf(out, "Gateway: unreachable (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Gateway: %s (%s)\n", opts.Listen, health.Status)
	if health.Version != "" {
		fmt.Fprintf(out, "Version: %s\n", health.Version)
	}
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Duration(health.UptimeSeconds*float64(time.Second))))
	if health.ShortcutsEnabled {
		fmt.Fprintf(out, "Shortcuts: %d registered\n", health.Shortcuts)
	} else {
		fmt.Fprintln(out, "Shortcuts: disabled")
	}
	fmt.Fprintf(out, "Pending commands: %d\n", health.Pending)
	fmt.Fprintf(out, "Stream subscribers: %d\n", health.Subscribers)
	fmt.Fprintf(out, "Websocket clients: %d\n", health.WebsocketClients)

	return nil
}

// healthURL returns the /healthz URL for a listen address. Wildcard hosts
// are reached through loopback.
func healthURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/healthz"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz"
}

func fetchHealth(ctx context.Context, url string) (*gateway.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var health gateway.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
