package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Schema identifies the column layout of a trace file.
type Schema string

const (
	// SchemaAuto picks the schema from the header row.
	SchemaAuto Schema = "auto"
	// SchemaLossFlag rows are `relative_time, loss` with loss "True" or "False".
	SchemaLossFlag Schema = "loss-flag"
	// SchemaLossDuration rows are `timestamp, loss_duration`; a positive duration opens
	// a 100% loss window of that length.
	SchemaLossDuration Schema = "loss-duration"
)

// ParseError reports a trace row that could not be used. Line is the 1-based line of
// the source file, the header being line 1.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d: %s", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Row is one data record and the source line it came from.
type Row struct {
	Line   int
	Fields []string
}

// Rows is a trace file split into its header and data records.
type Rows struct {
	Header  []string
	Records []Row
}

// ReadCSV reads a comma separated trace with a header row.
func ReadCSV(r io.Reader) (*Rows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, csvError(err)
	}
	rows := &Rows{Header: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := cr.FieldPos(0)
		rows.Records = append(rows.Records, Row{Line: line, Fields: rec})
	}
	return rows, nil
}

func csvError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Err: perr.Err}
	}
	return fmt.Errorf("reading trace: %w", err)
}

// DetectSchema infers the schema from the header's second column name.
func DetectSchema(header []string) (Schema, error) {
	if len(header) < 2 {
		return "", &ParseError{Line: 1, Err: fmt.Errorf("header needs two columns, got %d", len(header))}
	}
	col := strings.ToLower(strings.TrimSpace(header[1]))
	switch {
	case strings.Contains(col, "duration"):
		return SchemaLossDuration, nil
	case strings.Contains(col, "loss"):
		return SchemaLossFlag, nil
	}
	return "", &ParseError{Line: 1, Err: fmt.Errorf("cannot tell trace schema from column %q", header[1])}
}

func parseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	ns := math.Round(v * float64(time.Second))
	if ns >= math.MaxInt64 || ns < math.MinInt64 {
		return 0, fmt.Errorf("%q seconds out of range", s)
	}
	return time.Duration(ns), nil
}
