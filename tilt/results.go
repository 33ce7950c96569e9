package tilt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names of the output tables. The first column is "<central>_index".
var (
	angleColumns  = []string{"x", "y", "z", "z_rounded", "rotation_angle_deg"}
	kabschColumns = []string{"x", "y", "z", "rot_x_deg", "rot_y_deg", "rot_z_deg"}
)

// IndexColumn returns the name of the center index column for a central
// species label, e.g. "Si_index".
func IndexColumn(central string) string {
	return central + "_index"
}

// WriteAngleTable writes angle-averaging records as a tab-separated table.
func WriteAngleTable(w io.Writer, central string, records []AngleRecord) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, append([]string{IndexColumn(central)}, angleColumns...))
	for _, r := range records {
		writeRow(bw, []string{
			strconv.Itoa(r.Center),
			formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Z),
			formatFloat(r.ZRounded), formatFloat(r.RotationAngleDeg),
		})
	}
	return bw.Flush()
}

// WriteKabschTable writes Kabsch records as a tab-separated table.
func WriteKabschTable(w io.Writer, central string, records []KabschRecord) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, append([]string{IndexColumn(central)}, kabschColumns...))
	for _, r := range records {
		writeRow(bw, []string{
			strconv.Itoa(r.Center),
			formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Z),
			formatFloat(r.RotXDeg), formatFloat(r.RotYDeg), formatFloat(r.RotZDeg),
		})
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string) {
	w.WriteString(strings.Join(fields, "\t"))
	w.WriteByte('\n')
}

// formatFloat keeps the sign of values that round to zero, so -1e-7 and -0
// both print as -0.000000.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteFileAtomic writes through a temporary file in the target directory
// and renames it into place, so a failed run leaves no partial output.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}
	return nil
}

// ReadAngleTable parses a table written by WriteAngleTable. Columns are
// located by header name and may be separated by any whitespace; the first
// column is the center index. z_rounded is optional.
func ReadAngleTable(r io.Reader) ([]AngleRecord, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, fmt.Errorf("%w: empty table", ErrMalformedInput)
	}
	header := strings.Fields(sc.Text())
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, name := range []string{"x", "y", "z", "rotation_angle_deg"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: table has no %q column", ErrMalformedInput, name)
		}
	}

	var records []AngleRecord
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrMalformedInput, line, len(fields), len(header))
		}
		center, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: center index: %v", ErrMalformedInput, line, err)
		}
		get := func(name string) (float64, error) {
			i, ok := col[name]
			if !ok {
				return 0, nil
			}
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return 0, fmt.Errorf("%w: line %d: %s: %v", ErrMalformedInput, line, name, err)
			}
			return v, nil
		}
		rec := AngleRecord{Center: center}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"x", &rec.X},
			{"y", &rec.Y},
			{"z", &rec.Z},
			{"z_rounded", &rec.ZRounded},
			{"rotation_angle_deg", &rec.RotationAngleDeg},
		} {
			if *f.dst, err = get(f.name); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	return records, nil
}
