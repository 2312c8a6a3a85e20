package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ReadRequestsFile reads lookups from a CSV file, see ReadRequests.
func ReadRequestsFile(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadRequests(f)
}

// ReadRequests parses a CSV with a header row naming a "series" column and a
// "volume" (or "volumes") column. Volume cells take a volume spec, so
// "Berserk,1-3" expands to three requests. Rows that cannot be parsed are
// skipped with a warning.
func ReadRequests(r io.Reader) ([]Request, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	seriesCol, volumeCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "series":
			seriesCol = i
		case "volume", "volumes":
			volumeCol = i
		}
	}
	if seriesCol < 0 || volumeCol < 0 {
		return nil, fmt.Errorf("CSV header must contain series and volume columns, got %v", header)
	}

	var reqs []Request
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("Error reading record", "error", err)
			continue
		}
		line, _ := reader.FieldPos(0)
		if seriesCol >= len(record) || volumeCol >= len(record) {
			slog.Warn("Skipping short record", "line", line)
			continue
		}

		series := strings.TrimSpace(record[seriesCol])
		numbers, err := ParseVolumeSpec(record[volumeCol])
		if series == "" || err != nil {
			slog.Warn("Skipping invalid record", "line", line, "series", series, "error", err)
			continue
		}
		if len(reqs)+len(numbers) > MaxSpecVolumes {
			return nil, fmt.Errorf("CSV expands to more than %d lookups", MaxSpecVolumes)
		}
		for _, n := range numbers {
			reqs = append(reqs, Request{Series: series, Volume: n})
		}
	}
	return reqs, nil
}
