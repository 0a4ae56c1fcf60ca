package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferre795/chatrelay/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay server status",
	Long:  `Query the relay server's health endpoint and report its status.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(cfg.Client.ServerURL + "/healthz")
	if err != nil {
		fmt.Println("Status: unreachable")
		fmt.Printf("Server: %s\n", cfg.Client.ServerURL)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Status: unhealthy (HTTP %d)\n", resp.StatusCode)
		return nil
	}

	var health struct {
		Status   string  `json:"status"`
		Uptime   float64 `json:"uptime"`
		Sessions int     `json:"sessions"`
		Provider string  `json:"provider"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	fmt.Printf("Status: %s\n", health.Status)
	fmt.Printf("Server: %s\n", cfg.Client.ServerURL)
	fmt.Printf("Provider: %s\n", health.Provider)
	fmt.Printf("Sessions: %d\n", health.Sessions)
	fmt.Printf("Uptime: %s\n", formatDuration(time.Duration(health.Uptime)*time.Second))

	return nil
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
