package stencil

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/hbook"
)

// Plain text tables are the one container format that is parsed here rather
// than by a library. A StringReader splits the input into columns, a
// TextToDataRowReader turns the columns into a DataRow, and the text container
// collects the rows into one series per column.

var errIgnoreThisRow = errors.New("ignore this row")

// When Read is called, return an array of strings which are the columns.
type StringReader interface {
	Read(context.Context) ([]string, error)
}

type DataRow struct {
	X  float64
	Ys []float64
}

// When Read is called, return the DataRow.
type DataRowReader interface {
	Read(context.Context) (DataRow, error)
	ColumnNames() []string
}

// This implements a StringReader and reads an io.Reader using the Golang
// csv module. The input data must strictly conform to CSV. If the input data
// is separated by spaces, use the RelaxedStringReader.
type CsvStringReader struct {
	input     io.Reader
	csvReader *csv.Reader

	lineCount int
}

func NewCsvStringReader(input io.Reader) *CsvStringReader {
	r := csv.NewReader(input)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	return &CsvStringReader{
		input:     input,
		csvReader: r,
		lineCount: 0,
	}
}

func (r *CsvStringReader) Read(ctx context.Context) ([]string, error) {
	line, err := r.csvReader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	r.lineCount++

	if err != nil {
		logger := logrus.WithFields(logrus.Fields{
			"tag":     "CsvString",
			"line":    line,
			"lineNum": r.lineCount,
		})

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.WithError(err).Debug("unable to parse CSV, ignoring...")
			return nil, errIgnoreThisRow
		}
		logger.WithError(err).Error("unable to read CSV")
		return nil, err
	}

	return line, nil
}

// This is a more relaxed reader that can split on spaces or commas. However,
// it does not follow strict CSV quoting. Lines starting with # are skipped.
type RelaxedStringReader struct {
	input   io.Reader
	scanner *bufio.Scanner

	lineCount int
}

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	return &RelaxedStringReader{
		input:   input,
		scanner: bufio.NewScanner(input),

		lineCount: 0,
	}
}

// Split on either comma or any number of spaces or tabs
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				logrus.WithField("tag", "RelaxedString").WithError(err).Error("unable to read line")
				return nil, err
			}
			return nil, io.EOF
		}
		r.lineCount++

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Return only non-empty fields
		return Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
			return len(value) > 0
		}), nil
	}
}

// Creates a DataRowReader based on text input. Unparsable lines are ignored
// and logged via warnings.
type TextToDataRowReader struct {
	// The input reader object (either CsvStringReader or RelaxedStringReader)
	Input StringReader

	// The x column index. If this is <0, X is the row number counting from 0.
	// The rest of the row goes into DataRow.Ys.
	XIndex int

	// The labels of the columns excluding the X column.
	Columns []string

	// If the input row has a different length than Columns, ignore the row.
	ExpectExactColumnCount bool

	rowNum int
}

func (r *TextToDataRowReader) Read(ctx context.Context) (DataRow, error) {
	line, err := r.Input.Read(ctx)
	if err != nil {
		return DataRow{}, err
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag":  "TextToData",
		"line": line,
	})

	dataRow, err := parseDataRow(line, r.XIndex)
	if err != nil {
		logger.Warn("cannot parse float, ignoring...")
		return DataRow{}, errIgnoreThisRow
	}

	if r.ExpectExactColumnCount && (len(r.Columns) != len(dataRow.Ys)) {
		logger.Warnf("expected column count (%d) is not observed (%d)", len(r.Columns), len(dataRow.Ys))
		return DataRow{}, errIgnoreThisRow
	}

	if r.XIndex < 0 {
		dataRow.X = float64(r.rowNum)
	}
	r.rowNum++

	return dataRow, nil
}

func (r *TextToDataRowReader) ColumnNames() []string {
	return r.Columns
}

func parseDataRow(line []string, xIndex int) (DataRow, error) {
	dataRow := DataRow{}
	for i, value := range line {
		floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return DataRow{}, err
		}

		if i == xIndex {
			dataRow.X = floatValue
			continue
		}

		dataRow.Ys = append(dataRow.Ys, floatValue)
	}
	return dataRow, nil
}

// Series is one y column of a text table, plotted against the first column.
type Series struct {
	Name string
	Data *hbook.S2D
}

func (s *Series) Class() string { return "TextSeries" }

// textContainer reads a whole table up front. The first column is x. A first
// line that does not parse as numbers names the remaining columns, otherwise
// they are called col1, col2, ...
type textContainer struct {
	name   string
	keys   []string
	series map[string]*Series
}

func openTextContainer(filename string) (*textContainer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", filename, err)
	}
	defer f.Close()

	var input StringReader
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		input = NewCsvStringReader(f)
	} else {
		input = NewRelaxedStringReader(f)
	}

	c, err := readTextTable(context.Background(), input)
	if err != nil {
		return nil, fmt.Errorf("could not read %q: %w", filename, err)
	}
	c.name = filename
	return c, nil
}

func readTextTable(ctx context.Context, input StringReader) (*textContainer, error) {
	first, err := nextLine(ctx, input)
	if err == io.EOF {
		return &textContainer{series: map[string]*Series{}}, nil
	} else if err != nil {
		return nil, err
	}

	var columns []string
	var pending []DataRow
	if row, err := parseDataRow(first, 0); err == nil {
		for i := range row.Ys {
			columns = append(columns, fmt.Sprintf("col%d", i+1))
		}
		pending = append(pending, row)
	} else {
		if len(first) < 2 {
			return nil, fmt.Errorf("header needs an x column and at least one y column, got %v", first)
		}
		columns = first[1:]
	}

	reader := &TextToDataRowReader{
		Input:                  input,
		XIndex:                 0,
		Columns:                columns,
		ExpectExactColumnCount: true,
	}
	return collectSeries(ctx, reader, pending)
}

// collectSeries reads rows until io.EOF and gives one series per column of
// rows, starting with the rows in pending.
func collectSeries(ctx context.Context, rows DataRowReader, pending []DataRow) (*textContainer, error) {
	columns := rows.ColumnNames()
	for {
		row, err := rows.Read(ctx)
		if err == errIgnoreThisRow {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		pending = append(pending, row)
	}

	c := &textContainer{
		keys:   columns,
		series: make(map[string]*Series, len(columns)),
	}
	for i, col := range columns {
		pts := make([]hbook.Point2D, 0, len(pending))
		for _, row := range pending {
			if i >= len(row.Ys) {
				continue
			}
			pts = append(pts, hbook.Point2D{X: row.X, Y: row.Ys[i]})
		}
		c.series[col] = &Series{Name: col, Data: hbook.NewS2D(pts...)}
	}
	return c, nil
}

func nextLine(ctx context.Context, input StringReader) ([]string, error) {
	for {
		line, err := input.Read(ctx)
		if err == errIgnoreThisRow {
			continue
		}
		return line, err
	}
}

func (c *textContainer) Keys() []string {
	return c.keys
}

func (c *textContainer) Get(name string) (root.Object, error) {
	s, ok := c.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrKeyNotFound, name, c.name)
	}
	return s, nil
}

func (c *textContainer) Close() error {
	return nil
}
