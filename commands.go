package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"markestedt/hotkeyrelay/client"
	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/config"
	"markestedt/hotkeyrelay/platform/native"
	"markestedt/hotkeyrelay/systray"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Addr       string
}

// NewRootCommand creates the root command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hotkeyrelay",
		Short: "Relay global hotkeys to a local subscriber",
		Long: `Watches global key combinations and pushes each press to local
subscribers over Server-Sent Events. The combinations are set at run time
through POST /config.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.Verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default is the user config directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newTriggerCommand(opts))
	cmd.AddCommand(newConfigureCommand(opts))
	cmd.AddCommand(newListenCommand(opts))
	cmd.AddCommand(newKeysCommand())

	return cmd
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath, _ = config.ConfigPath()
	}
	slog.Info("Configuration loaded", "path", configPath)

	agent, err := NewAgent(cfg, native.New())
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	useTray := cfg.Tray.Enabled
	if useTray && runtime.GOOS == "darwin" && cfg.Hotkeys.Enabled {
		// Both the tray and the hotkey backend need the macOS main thread.
		slog.Warn("System tray is unavailable on macOS while hotkeys are enabled")
		useTray = false
	}

	if useTray {
		err = runWithTray(ctx, cancel, cfg, agent)
	} else {
		native.RunOnMainThread(func() {
			err = agent.Run(ctx)
		})
	}
	if err != nil {
		return err
	}

	slog.Info("Hotkey relay stopped")
	return nil
}

// runWithTray gives the main thread to the tray and runs the agent beside it.
func runWithTray(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, agent *Agent) error {
	tray := systray.NewSystrayManager(cfg.Addr(), agent.Subscribers)

	go func() {
		select {
		case <-tray.WaitForQuit():
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(ctx)
		tray.Stop()
	}()

	tray.Run()
	cancel()
	return <-errCh
}

func newTriggerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger <combo>",
		Short: "Publish a fire-event for a registered combo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := combo.Parse(args[0])
			if err != nil {
				return err
			}
			if err := client.New(opts.Addr).Trigger(cmd.Context(), c.String()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "triggered %s\n", c)
			return nil
		},
	}
	addAddrFlag(cmd, opts)
	return cmd
}

func newConfigureCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure [combo...]",
		Short: "Replace the watched combos (no arguments clears them)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(opts.Addr)
			count, err := c.Configure(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %d combo(s)\n", count)
			return nil
		},
	}
	addAddrFlag(cmd, opts)
	return cmd
}

func newListenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print fire-events from a running relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			c := client.New(opts.Addr)
			out := cmd.OutOrStdout()
			err := c.Stream(ctx, func(m client.Message) error {
				if m.Ready {
					fmt.Fprintln(out, "connected")
					return nil
				}
				fmt.Fprintln(out, m.Combo)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	addAddrFlag(cmd, opts)
	return cmd
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List key names usable in combos on this OS",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Modifiers: CTRL, ALT, SHIFT, META")
			fmt.Fprintln(out, "Keys:", strings.Join(native.KeyNames(), ", "))
		},
	}
}

func addAddrFlag(cmd *cobra.Command, opts *RootOptions) {
	cmd.Flags().StringVar(&opts.Addr, "addr", client.DefaultBaseURL, "relay base URL")
}
