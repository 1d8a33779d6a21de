package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/cli/health"
	"github.com/Charliesj0129/pixAV/internal/cli/output"
	"github.com/Charliesj0129/pixAV/internal/cli/timeutil"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/config"
	"github.com/Charliesj0129/pixAV/pkg/models"
)

var (
	statusPidFile      string
	statusResolverPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	Long: `Display the current status of the PixAV pipeline.

This command checks process liveness via the PID file, probes the resolver
health endpoint, and reads a pipeline snapshot from the database and broker:
task counts per state, queue and dead letter depths, active accounts and
the pause gate.

Examples:
  # Check status (uses default settings)
  pixav status

  # Check status with custom resolver port
  pixav status --resolver-port 8001

  # Output as JSON
  pixav status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/pixav/pixav.pid)")
	statusCmd.Flags().IntVar(&statusResolverPort, "resolver-port", 0, "Resolver port for the health probe (default: from config)")
}

// QueueStatus is one work queue's depth snapshot.
type QueueStatus struct {
	Name   string `json:"name" yaml:"name"`
	Depth  int64  `json:"depth" yaml:"depth"`
	DLQ    int64  `json:"dlq" yaml:"dlq"`
	Replay int64  `json:"replay" yaml:"replay"`
}

// PipelineStatus represents the pipeline status information.
type PipelineStatus struct {
	Running        bool             `json:"running" yaml:"running"`
	PID            int              `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message        string           `json:"message" yaml:"message"`
	StartedAt      string           `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime         string           `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Healthy        bool             `json:"healthy" yaml:"healthy"`
	Paused         bool             `json:"paused" yaml:"paused"`
	ActiveAccounts int64            `json:"active_accounts" yaml:"active_accounts"`
	Tasks          map[string]int64 `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Queues         []QueueStatus    `json:"queues,omitempty" yaml:"queues,omitempty"`
	SnapshotError  string           `json:"snapshot_error,omitempty" yaml:"snapshot_error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	status := PipelineStatus{
		Running: false,
		Healthy: false,
		Message: "Pipeline is not running",
	}

	// Use default PID file if not specified
	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Check PID file first
	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if err == nil {
			// Check if process is running
			process, err := os.FindProcess(pid)
			if err == nil {
				// On Unix, FindProcess always succeeds, we need to send signal 0 to check
				err = process.Signal(syscall.Signal(0))
				if err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	// Probe the resolver health endpoint (works for daemon and foreground mode)
	probeHealth(&status, resolverPort(cfg))

	// Read the pipeline snapshot straight from the database and broker.
	// A stopped process still has durable state worth showing.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := snapshotPipeline(ctx, cfg, &status); err != nil {
		status.SnapshotError = err.Error()
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func resolverPort(cfg *config.Config) int {
	if statusResolverPort != 0 {
		return statusResolverPort
	}
	return cfg.Resolver.Port
}

func probeHealth(status *PipelineStatus, port int) {
	healthURL := fmt.Sprintf("http://localhost:%d/health", port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		if status.Running {
			// PID file says running but health check failed. The resolver
			// role may simply be disabled on this process.
			status.Message = "Pipeline process exists but resolver health check failed"
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var healthResp health.Response
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		status.Running = true
		status.Message = "Pipeline is running but health response invalid"
		return
	}

	status.Running = true
	status.Healthy = healthResp.Healthy()
	status.StartedAt = healthResp.Data.StartedAt
	status.Uptime = healthResp.Data.Uptime
	if status.Healthy {
		status.Message = "Pipeline is running and healthy"
	} else {
		status.Message = fmt.Sprintf("Pipeline is running but unhealthy: %s", healthResp.Error)
	}
}

func snapshotPipeline(ctx context.Context, cfg *config.Config, status *PipelineStatus) error {
	st, err := cmdutil.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	defer func() { _ = st.Close() }()

	client, err := cmdutil.OpenBroker(cfg)
	if err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	defer func() { _ = client.Close() }()

	status.Tasks = make(map[string]int64)
	for _, state := range models.AllTaskStates() {
		count, err := st.CountTasksByState(ctx, state)
		if err != nil {
			return err
		}
		status.Tasks[string(state)] = count
	}

	status.ActiveAccounts, err = st.ActiveCount(ctx)
	if err != nil {
		return err
	}

	paused, err := broker.NewPauseGate(client, cfg.System.PauseKey).Paused(ctx)
	if err != nil {
		return err
	}
	status.Paused = paused

	for _, name := range []string{cfg.Queues.Crawl, cfg.Queues.Download, cfg.Queues.Upload, cfg.Queues.Verify} {
		depth, err := broker.NewQueue(client, name).Length(ctx)
		if err != nil {
			return err
		}
		dlq, err := broker.NewQueue(client, broker.DLQName(name)).Length(ctx)
		if err != nil {
			return err
		}
		replay, err := broker.NewDelaySet(client, broker.ReplaySetName(name)).Size(ctx)
		if err != nil {
			return err
		}
		status.Queues = append(status.Queues, QueueStatus{Name: name, Depth: depth, DLQ: dlq, Replay: replay})
	}

	return nil
}

func printStatusTable(status PipelineStatus) {
	fmt.Println()
	fmt.Println("PixAV Pipeline Status")
	fmt.Println("=====================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
		if status.StartedAt != "" {
			fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
		}
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()

	if status.SnapshotError != "" {
		fmt.Printf("  Pipeline snapshot unavailable: %s\n", status.SnapshotError)
		fmt.Println()
		return
	}

	if status.Paused {
		fmt.Printf("  Uploads:    \033[33mpaused\033[0m\n")
	} else {
		fmt.Printf("  Uploads:    running\n")
	}
	fmt.Printf("  Accounts:   %d active\n", status.ActiveAccounts)
	fmt.Println()

	fmt.Println("  Tasks")
	for _, state := range models.AllTaskStates() {
		fmt.Printf("    %-12s %d\n", string(state), status.Tasks[string(state)])
	}
	fmt.Println()

	fmt.Println("  Queues")
	for _, q := range status.Queues {
		fmt.Printf("    %-24s depth=%-5d dlq=%-5d replay=%d\n", q.Name, q.Depth, q.DLQ, q.Replay)
	}
	fmt.Println()
}
