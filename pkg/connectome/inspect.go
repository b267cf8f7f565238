package connectome

import (
	"bufio"
	"fmt"
	"os"
	"sort"
)

// InspectReport summarizes the row structure of a connectome file without
// parsing its values.
type InspectReport struct {
	Path          string `json:"path"`
	Empty         bool   `json:"empty"`
	Lines         int    `json:"n_lines"`
	UniqueLengths []int  `json:"unique_lengths"`
	MinLength     int    `json:"min_len"`
	MaxLength     int    `json:"max_len"`
	Square        bool   `json:"is_square"`
}

// Inspect counts the cells of every non-blank line of path. A file is square
// when all rows share one length and that length equals the line count.
func Inspect(path string) (InspectReport, error) {
	report := InspectReport{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	seen := make(map[int]bool)
	var lengths []int
	for scanner.Scan() {
		report.Lines++
		line := scanner.Text()
		tokens := Tokenize(line)
		if len(tokens) == 0 && isBlank(line) {
			continue
		}
		lengths = append(lengths, len(tokens))
		seen[len(tokens)] = true
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(lengths) == 0 {
		report.Empty = true
		return report, nil
	}

	for l := range seen {
		report.UniqueLengths = append(report.UniqueLengths, l)
	}
	sort.Ints(report.UniqueLengths)
	report.MinLength = report.UniqueLengths[0]
	report.MaxLength = report.UniqueLengths[len(report.UniqueLengths)-1]
	report.Square = len(report.UniqueLengths) == 1 && report.UniqueLengths[0] == report.Lines

	return report, nil
}

func isBlank(line string) bool {
	for _, r := range line {
		if r != ' ' && r != '\t' && r != '\r' && r != '\n' {
			return false
		}
	}
	return true
}
