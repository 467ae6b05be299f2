package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var (
	serviceStart     bool
	serviceStop      bool
	serviceInstall   bool
	serviceUninstall bool
	serviceStatus    bool
	serviceRun       bool
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the ghnotify poller as a system service",
	Long: `Install, uninstall, start, stop, or check the status of the ghnotify poller as
a system service.

On Windows, this creates/manages a Windows Service.
On Linux/macOS, this creates/manages a systemd/launchd user service.

Log in with "ghnotify login" before starting the service.`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.Flags().BoolVar(&serviceStart, "start", false, "Start the service")
	serviceCmd.Flags().BoolVar(&serviceStop, "stop", false, "Stop the service")
	serviceCmd.Flags().BoolVar(&serviceInstall, "install", false, "Install the service")
	serviceCmd.Flags().BoolVar(&serviceUninstall, "uninstall", false, "Uninstall the service")
	serviceCmd.Flags().BoolVar(&serviceStatus, "status", false, "Check the service status")
	serviceCmd.Flags().BoolVar(&serviceRun, "run", false, "Run under the service manager")

	_ = serviceCmd.Flags().MarkHidden("run")
}

// program implements service.Interface around runDaemon.
type program struct {
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func (p *program) Start(s service.Service) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	// Start should not block.
	go func() {
		defer close(done)
		defer a.Close()

		if err := runDaemon(ctx, a, false); err != nil {
			_ = service.ConsoleLogger.Errorf("poller exited with error: %v", err)
		}
	}()

	return nil
}

func (p *program) Stop(s service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return nil
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "ghnotify",
		DisplayName: "ghnotify",
		Description: "Polls GitHub notifications and shows alerts for new threads",
		Arguments:   []string{"service", "--run"},
		Option: service.KeyValue{
			"UserService": true,
		},
	}
}

func runService(cmd *cobra.Command, args []string) error {
	flagCount := 0
	for _, set := range []bool{serviceStart, serviceStop, serviceInstall, serviceUninstall, serviceStatus, serviceRun} {
		if set {
			flagCount++
		}
	}

	if flagCount == 0 {
		return fmt.Errorf("please specify one of: --start, --stop, --install, --uninstall, --status")
	}

	if flagCount > 1 {
		return fmt.Errorf("please specify only one operation at a time")
	}

	s, err := service.New(&program{}, serviceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	switch {
	case serviceRun:
		return s.Run()
	case serviceInstall:
		return installService(s)
	case serviceUninstall:
		return uninstallService(s)
	case serviceStart:
		return startService(s)
	case serviceStop:
		return stopService(s)
	case serviceStatus:
		return statusService(s)
	}

	return nil
}

func installService(s service.Service) error {
	fmt.Println("Installing ghnotify service...")

	if err := s.Install(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}

	fmt.Println("✓ Service installed successfully!")
	fmt.Println("\nTo start the service, run:")
	fmt.Println("  ghnotify service --start")

	return nil
}

func uninstallService(s service.Service) error {
	fmt.Println("Uninstalling ghnotify service...")

	// Try to stop first
	_ = s.Stop()

	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall service: %w", err)
	}

	fmt.Println("✓ Service uninstalled successfully!")

	return nil
}

func startService(s service.Service) error {
	fmt.Println("Starting ghnotify service...")

	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	fmt.Println("✓ Service started successfully!")

	return nil
}

func stopService(s service.Service) error {
	fmt.Println("Stopping ghnotify service...")

	if err := s.Stop(); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	fmt.Println("✓ Service stopped successfully!")

	return nil
}

func statusService(s service.Service) error {
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("failed to get service status: %w", err)
	}

	fmt.Printf("Service Status: ")

	switch status {
	case service.StatusRunning:
		fmt.Println("Running ✓")
	case service.StatusStopped:
		fmt.Println("Stopped")
	case service.StatusUnknown:
		fmt.Println("Unknown")
	default:
		fmt.Printf("%v\n", status)
	}

	return nil
}
