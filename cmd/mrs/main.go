package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	mrs "github.com/ThibaultBS/MRS-Missions"
	"github.com/ThibaultBS/MRS-Missions/checkpoint"
)

var (
	verbose bool
	logger  kitlog.Logger
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mrs",
		Short:         "Mission simulation of launchers and spacecraft",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
			logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
			if verbose {
				logger = level.NewFilter(logger, level.AllowDebug())
			} else {
				logger = level.NewFilter(logger, level.AllowInfo())
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	root.AddCommand(newRunCommand())
	root.AddCommand(newValidateCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <mission>",
		Short: "Validate a mission file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := mrs.LoadMission(args[0]); err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", args[0])
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		endMET      float64
		checkpoints string
		resume      float64
		metrics     bool
	)
	cmd := &cobra.Command{
		Use:   "run <mission>",
		Short: "Propagate a mission and print its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := mrs.LoadMission(args[0])
			if err != nil {
				return report(err)
			}
			reg := prometheus.NewRegistry()
			opts := mrs.RunOptions{EndMET: endMET, Logger: logger, Metrics: mrs.NewMetrics(reg)}

			var store *checkpoint.Store
			if checkpoints != "" {
				if store, err = checkpoint.Open(ctx, checkpoints); err != nil {
					return report(err)
				}
				defer store.Close()
			}
			if cmd.Flags().Changed("resume") {
				if store == nil {
					return report(fmt.Errorf("--resume requires --checkpoints"))
				}
				if opts.Resume, err = store.Load(ctx, cfg.Name, resume); err != nil {
					return report(err)
				}
			}

			res, err := mrs.Run(ctx, cfg, opts)
			if res != nil && store != nil {
				if serr := store.Save(ctx, cfg.Name, res.Checkpoints); serr != nil {
					level.Error(logger).Log("subsys", "checkpoint", "err", serr)
				}
			}
			if err != nil {
				return report(err)
			}

			out := cmd.OutOrStdout()
			for _, e := range res.Events {
				fmt.Fprintf(out, "%s\n\t%s\n", e, e.Flight)
			}
			final := res.Final()
			fmt.Fprintf(out, "final: %s\n", final)
			if final.R != nil {
				if o := mrs.NewOrbitFromRV(final.R, final.V, mrs.Earth); o.Energyξ() < 0 {
					fmt.Fprintf(out, "orbit: %s\n", o)
				} else {
					fmt.Fprintf(out, "escape: ξ=%.3f kJ/kg\n", o.Energyξ()/1e3)
				}
			}
			if metrics {
				return printMetrics(cmd, reg)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&endMET, "end", 0, "stop the run at this MET (seconds)")
	cmd.Flags().StringVar(&checkpoints, "checkpoints", "", "SQLite database storing the segment checkpoints")
	cmd.Flags().Float64Var(&resume, "resume", 0, "resume from the checkpoint at this MET")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print the run metrics")
	return cmd
}

// report logs err and returns it for cobra.
func report(err error) error {
	var errs mrs.ConfigurationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			level.Error(logger).Log("subsys", "conf", "err", e)
		}
		return err
	}
	level.Error(logger).Log("err", err)
	return err
}

func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			fmt.Fprintf(out, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
		}
	}
	return nil
}
