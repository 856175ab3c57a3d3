package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"payloadnav/internal/config"
	"payloadnav/internal/estimate"
	"payloadnav/internal/flightlog"
	"payloadnav/internal/gridmap"
	"payloadnav/internal/nav"
)

var (
	processLaunch string
	processWrite  bool
)

var processCmd = &cobra.Command{
	Use:   "process <flight.tsv[.zst]>",
	Short: "Re-estimate the landing cell from a recorded flight log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var launch *gridmap.GeoCoord
		if processLaunch != "" {
			c, err := parseLatLon(processLaunch)
			if err != nil {
				return err
			}
			launch = &c
		}
		return runProcess(cmd.Context(), cfg, args[0], launch, processWrite, cmd.OutOrStdout())
	},
}

func init() {
	processCmd.Flags().StringVar(&processLaunch, "launch", "", "launch coordinate as lat,lon")
	processCmd.Flags().BoolVar(&processWrite, "write", false, "write the result files to output.dir")
}

func runProcess(ctx context.Context, cfg config.Config, path string, launch *gridmap.GeoCoord, write bool, out io.Writer) error {
	loc, err := locatorFromConfig(cfg.Grid)
	if err != nil {
		return err
	}
	l, err := flightlog.ReadFile(path)
	if err != nil {
		return err
	}
	buf := l.Buffer()
	res, err := estimate.Run(ctx, buf, estimateOptions(cfg.Estimator))
	if err != nil {
		if write {
			_ = flightlog.WriteFailure(cfg.Output.Dir, err)
		}
		return err
	}
	finalFt := res.Final.Scale(nav.MetersToFeet)
	fix, err := loc.Locate(gridmap.Planar{
		North: finalFt.Axis(cfg.Estimator.NorthAxis),
		East:  finalFt.Axis(cfg.Estimator.EastAxis),
	}, launch)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "flight:   %d samples over %.2f s (recorded %s at %g Hz)\n",
		buf.Len(), res.Duration, l.Start.Format("2006-01-02T15:04:05Z07:00"), l.RateHz)
	if n := l.Incomplete(); n > 0 {
		fmt.Fprintf(out, "skipped:  %d ticks with a missed read\n", n)
	}
	if res.OffUnit > 0 {
		fmt.Fprintf(out, "warning:  %d orientation samples were not unit quaternions\n", res.OffUnit)
	}
	fmt.Fprintf(out, "position: north %.1f ft, east %.1f ft, up %.1f ft\n", finalFt.X, finalFt.Y, finalFt.Z)
	fmt.Fprintf(out, "cell:     %d (%s)\n", fix.Cell, fix.Source)

	if write {
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return err
		}
		return flightlog.WriteResult(cfg.Output.Dir, fix, finalFt)
	}
	return nil
}
