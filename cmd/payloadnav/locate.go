package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"payloadnav/internal/config"
	"payloadnav/internal/gridmap"
)

var locateLaunch string

var locateCmd = &cobra.Command{
	Use:   "locate <lat> <lon>",
	Short: "Map a coordinate onto the recovery grid",
	Long: `Locate prints the flat-earth distance of a coordinate from the launch point
(or the map reference), the geodesic distance for comparison and the grid
cell it falls in.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		at, err := gridmap.ParseCoord(args[0], args[1])
		if err != nil {
			return err
		}
		var launch *gridmap.GeoCoord
		if locateLaunch != "" {
			c, err := parseLatLon(locateLaunch)
			if err != nil {
				return err
			}
			launch = &c
		}
		return runLocate(cfg, at, launch, cmd.OutOrStdout())
	},
}

func init() {
	locateCmd.Flags().StringVar(&locateLaunch, "launch", "", "launch coordinate as lat,lon (default: map reference)")
}

func runLocate(cfg config.Config, at gridmap.GeoCoord, launch *gridmap.GeoCoord, out io.Writer) error {
	loc, err := locatorFromConfig(cfg.Grid)
	if err != nil {
		return err
	}
	from := loc.Surveyor.Reference
	if launch != nil {
		from = *launch
	}
	fix, err := loc.LocateGPS(from, at)
	if err != nil {
		return err
	}
	d := loc.Surveyor.Distance(from, at)
	fmt.Fprintf(out, "from:     %s\n", from)
	fmt.Fprintf(out, "distance: north %g ft, east %g ft (%.1f ft, geodesic %.1f ft)\n",
		d.North, d.East, d.Norm(), loc.Surveyor.Geodesic(from, at))
	fmt.Fprintf(out, "map:      north %g ft, east %g ft from centre\n", fix.Position.North, fix.Position.East)
	fmt.Fprintf(out, "cell:     %d\n", fix.Cell)
	return nil
}
