package tc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	// MaxDistributionSize is the kernel's NETEM_DIST_MAX.
	MaxDistributionSize = 16384
	// DefaultDistributionPath is where iproute2 installs its delay tables.
	DefaultDistributionPath = "/usr/lib/tc/pareto.dist"
)

// Distribution is an empirical delay table as consumed by netem. Once loaded it is
// shared read-only across every Apply of a run.
type Distribution []int16

// LoadDistribution reads a delay table from path; an empty path loads DefaultDistributionPath.
func LoadDistribution(path string) (Distribution, error) {
	if path == "" {
		path = DefaultDistributionPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading distribution: %w", err)
	}
	defer f.Close()
	return ParseDistribution(f, path)
}

// ParseDistribution parses whitespace separated int16 samples, skipping blank lines and
// lines starting with '#'. name is only used in error messages.
func ParseDistribution(r io.Reader, name string) (Distribution, error) {
	var dist Distribution
	// tables are often written on a single line, so lines are not length limited
	br := bufio.NewReader(r)
	line := 0
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading distribution %s: %w", name, err)
		}
		if raw == "" && err == io.EOF {
			return dist, nil
		}
		line++
		text := strings.TrimSpace(raw)
		if text != "" && !strings.HasPrefix(text, "#") {
			for _, tok := range strings.Fields(text) {
				if len(dist) == MaxDistributionSize {
					return nil, fmt.Errorf("%s:%d: %w", name, line, ErrTooLarge)
				}
				v, perr := strconv.ParseInt(tok, 10, 16)
				if perr != nil {
					return nil, &ParseError{Path: name, Line: line, Token: tok, Err: perr}
				}
				dist = append(dist, int16(v))
			}
		}
		if err == io.EOF {
			return dist, nil
		}
	}
}
