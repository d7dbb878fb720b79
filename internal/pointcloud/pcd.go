package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadPCD parses an ASCII PCD stream. The x, y and z fields are required;
// intensity and label are read when present (label also accepts the
// "sticker_labels_" field name written by older tooling).
func ReadPCD(r io.Reader) ([]Point, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fields := map[string]int{}
	expected := -1
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		switch strings.ToUpper(parts[0]) {
		case "FIELDS":
			for i, name := range parts[1:] {
				fields[strings.ToLower(name)] = i
			}
		case "POINTS":
			if len(parts) < 2 {
				return nil, fmt.Errorf("line %d: POINTS without count", lineNo)
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid POINTS count: %w", lineNo, err)
			}
			expected = n
		case "DATA":
			if len(parts) < 2 || strings.ToLower(parts[1]) != "ascii" {
				return nil, fmt.Errorf("line %d: only ascii PCD data is supported", lineNo)
			}
			return readPCDBody(sc, fields, expected, lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("PCD header has no DATA line")
}

func readPCDBody(sc *bufio.Scanner, fields map[string]int, expected, lineNo int) ([]Point, error) {
	ix, okX := fields["x"]
	iy, okY := fields["y"]
	iz, okZ := fields["z"]
	if !okX || !okY || !okZ {
		return nil, fmt.Errorf("PCD header must declare x, y and z fields")
	}
	ii, hasIntensity := fields["intensity"]
	il, hasLabel := fields["label"]
	if !hasLabel {
		il, hasLabel = fields["sticker_labels_"]
	}

	capacity := expected
	if capacity < 0 {
		capacity = 0
	}
	points := make([]Point, 0, capacity)

	for sc.Scan() {
		lineNo++
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		p := Point{Label: NoLabel}
		var err error
		if p.X, err = parseField(parts, ix); err != nil {
			return nil, fmt.Errorf("line %d: x: %w", lineNo, err)
		}
		if p.Y, err = parseField(parts, iy); err != nil {
			return nil, fmt.Errorf("line %d: y: %w", lineNo, err)
		}
		if p.Z, err = parseField(parts, iz); err != nil {
			return nil, fmt.Errorf("line %d: z: %w", lineNo, err)
		}
		if hasIntensity {
			if p.Intensity, err = parseField(parts, ii); err != nil {
				return nil, fmt.Errorf("line %d: intensity: %w", lineNo, err)
			}
		}
		if hasLabel {
			l, err := parseField(parts, il)
			if err != nil {
				return nil, fmt.Errorf("line %d: label: %w", lineNo, err)
			}
			p.Label = int(l)
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if expected >= 0 && len(points) != expected {
		return nil, fmt.Errorf("PCD declared %d points, read %d", expected, len(points))
	}
	return points, nil
}

func parseField(parts []string, idx int) (float64, error) {
	if idx >= len(parts) {
		return 0, fmt.Errorf("missing column %d", idx)
	}
	return strconv.ParseFloat(parts[idx], 64)
}

// WritePCD writes points as an ASCII PCD with x, y, z, intensity and label
// fields.
func WritePCD(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# .PCD v0.7 - Point Cloud Data file format\n")
	fmt.Fprintf(bw, "VERSION 0.7\n")
	fmt.Fprintf(bw, "FIELDS x y z intensity label\n")
	fmt.Fprintf(bw, "SIZE 8 8 8 8 4\n")
	fmt.Fprintf(bw, "TYPE F F F F I\n")
	fmt.Fprintf(bw, "COUNT 1 1 1 1 1\n")
	fmt.Fprintf(bw, "WIDTH %d\n", len(points))
	fmt.Fprintf(bw, "HEIGHT 1\n")
	fmt.Fprintf(bw, "VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(bw, "POINTS %d\n", len(points))
	fmt.Fprintf(bw, "DATA ascii\n")
	for _, p := range points {
		fmt.Fprintf(bw, "%s %s %s %s %d\n",
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
			strconv.FormatFloat(p.Z, 'g', -1, 64),
			strconv.FormatFloat(p.Intensity, 'g', -1, 64),
			p.Label)
	}
	return bw.Flush()
}
