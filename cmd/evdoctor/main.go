// Command evdoctor initializes the evcompat event layer over the native
// netpoll driver and reports what an application would see: the resolved
// driver version, the selected polling backend, known-issue findings, and
// header compatibility. The --emulate flag rebuilds the degraded surfaces
// of old driver generations.
package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	evcompat "github.com/joeycumines/go-evcompat"
	"github.com/joeycumines/go-evcompat/netpoll"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel   string
	emulate    string
	noBackends []string
}

func (x *rootOptions) logger() (*logiface.Logger[logiface.Event], error) {
	var lvl logiface.Level
	switch x.logLevel {
	case "debug":
		lvl = logiface.LevelDebug
	case "info":
		lvl = logiface.LevelInformational
	case "notice":
		lvl = logiface.LevelNotice
	case "warning":
		lvl = logiface.LevelWarning
	case "err":
		lvl = logiface.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", x.logLevel)
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(lvl),
	).Logger(), nil
}

func (x *rootOptions) driver() (evcompat.Driver, error) {
	opts := make([]netpoll.Option, 0, len(x.noBackends)+1)
	switch x.emulate {
	case "modern":
	case "classic":
		opts = append(opts, netpoll.WithGeneration(netpoll.GenerationClassic))
	case "ancient":
		opts = append(opts, netpoll.WithGeneration(netpoll.GenerationAncient))
	default:
		return nil, fmt.Errorf("unknown driver generation %q", x.emulate)
	}
	for _, name := range x.noBackends {
		opts = append(opts, netpoll.WithoutBackend(name))
	}
	return netpoll.New(opts...)
}

// initializeBase converts Initialize's panics into errors at the command
// boundary.
func initializeBase(drv evcompat.Driver, opts ...evcompat.Option) (b *evcompat.Base, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return evcompat.Initialize(drv, opts...), nil
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	var server bool
	var tablePath string
	cmd := &cobra.Command{
		Use:          "check",
		Short:        "Report driver version, backend, and compatibility findings",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return err
			}
			opts := []evcompat.Option{evcompat.WithLogger(logger)}
			if tablePath != "" {
				data, err := os.ReadFile(tablePath)
				if err != nil {
					return err
				}
				table, err := evcompat.ParseIssueTable(data)
				if err != nil {
					return err
				}
				opts = append(opts, evcompat.WithIssueTable(table))
			}
			drv, err := root.driver()
			if err != nil {
				return err
			}
			b, err := initializeBase(drv, opts...)
			if err != nil {
				return err
			}
			defer b.Loop().Close()
			b.InstallLogBridge()

			b.CheckHeaderCompatibility()
			finding := b.CheckKnownIssues(b.Method(), server)

			v, s := b.RuntimeVersion()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver version: %s (0x%08x)\n", s, uint32(v))
			fmt.Fprintf(out, "backend: %s\n", b.Method())
			fmt.Fprintf(out, "compatibility tier: %s\n", evcompat.TierOf(v))
			fmt.Fprintf(out, "finding: %s\n", finding.Level)
			if finding.Level != evcompat.IssueNone {
				return fmt.Errorf("known-issue check failed: %s", finding.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&server, "server", false, "apply the stricter server-role rules")
	cmd.Flags().StringVar(&tablePath, "issue-table", "", "YAML file overriding the built-in known-issue table")
	return cmd
}

func newTickCommand(root *rootOptions) *cobra.Command {
	var interval time.Duration
	var count int
	cmd := &cobra.Command{
		Use:          "tick",
		Short:        "Run a periodic timer on the event loop, reporting each firing",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %v", interval)
			}
			if count <= 0 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			logger, err := root.logger()
			if err != nil {
				return err
			}
			drv, err := root.driver()
			if err != nil {
				return err
			}
			b, err := initializeBase(drv, evcompat.WithLogger(logger))
			if err != nil {
				return err
			}
			defer b.Loop().Close()
			b.InstallLogBridge()

			// Ctrl-C drains through the loop itself.
			sig, err := evcompat.NewSignalEvent(b, syscall.SIGINT, func(int, evcompat.EventMask) {
				_ = b.LoopExit(0)
			})
			if err != nil {
				return err
			}
			defer sig.Free()
			if err := sig.Add(-1); err != nil {
				return err
			}

			var n int
			start := time.Now()
			tm, err := evcompat.NewPeriodicTimer(b, interval, func(*evcompat.PeriodicTimer) {
				n++
				elapsed := time.Since(start)
				drift := elapsed - time.Duration(n)*interval
				fmt.Fprintf(cmd.OutOrStdout(), "tick %d at %s (drift %s)\n",
					n, elapsed.Round(time.Millisecond), drift.Round(time.Millisecond))
				if n >= count {
					_ = b.LoopExit(0)
				}
			})
			if err != nil {
				return err
			}
			defer tm.Free()
			return b.Loop().Dispatch()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "firing interval")
	cmd.Flags().IntVar(&count, "count", 4, "number of firings before exiting")
	return cmd
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "evdoctor",
		Short: "Event driver doctor",
		Long: `evdoctor stands up the evcompat event layer over its native netpoll
driver and reports what an application would see: the resolved driver
version, the selected polling backend, known-issue findings, and header
compatibility. Old driver generations can be emulated to exercise the
degraded paths.`,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "notice", "minimum log level (debug|info|notice|warning|err)")
	cmd.PersistentFlags().StringVar(&opts.emulate, "emulate", "modern", "driver generation to present (modern|classic|ancient)")
	cmd.PersistentFlags().StringArrayVar(&opts.noBackends, "no-backend", nil, "disable a polling backend (repeatable)")
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newTickCommand(opts))
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "evdoctor:", err)
		os.Exit(1)
	}
}
