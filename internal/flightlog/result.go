package flightlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"payloadnav/internal/gridmap"
	"payloadnav/internal/nav"
)

const (
	GridFile     = "grid_number.txt"
	PositionFile = "final_position.txt"
)

// WriteResult stores the located cell and the final displacement in feet
// (north, east, up) under dir.
func WriteResult(dir string, fix gridmap.Fix, finalFt nav.Vec3) error {
	if err := writeFile(filepath.Join(dir, GridFile), fmt.Sprintf("%d\n", fix.Cell)); err != nil {
		return err
	}
	pos := fmt.Sprintf("%s\t%s\t%s\n", formatFloat(finalFt.X), formatFloat(finalFt.Y), formatFloat(finalFt.Z))
	return writeFile(filepath.Join(dir, PositionFile), pos)
}

// WriteFailure writes the error sentinel to both result files.
func WriteFailure(dir string, reason error) error {
	msg := "ERROR: " + strings.ReplaceAll(reason.Error(), "\n", " ") + "\n"
	if err := writeFile(filepath.Join(dir, GridFile), msg); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, PositionFile), msg)
}

// writeFile replaces path via a temp file so a reader never sees a partial
// result.
func writeFile(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("flightlog: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flightlog: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flightlog: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flightlog: %w", err)
	}
	return nil
}
