package state

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// DefaultDelimiter separates records in a file reader's source file.
const DefaultDelimiter = "\n"

// FileReader is a right-hand-side-only collection sourced from a delimited
// file. Each record becomes a (lineno, text) tuple numbered from 1.
type FileReader struct {
	*base
	filename  string
	delimiter string
}

func (f *FileReader) Filename() string  { return f.filename }
func (f *FileReader) Delimiter() string { return f.delimiter }

// Insert always fails; the contents come from Load.
func (f *FileReader) Insert(types.Tuple) error {
	return fmt.Errorf("%w: %s is filled from %s", types.ErrReadOnlyCollection, f.name, f.filename)
}

// Load replaces the contents with the records of the source file.
func (f *FileReader) Load() error {
	fh, err := os.Open(f.filename)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.filename, err)
	}
	defer fh.Close()

	f.base.Reset()
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	scanner.Split(splitOn([]byte(f.delimiter)))
	for lineno := 1; scanner.Scan(); lineno++ {
		if _, err := f.insert(types.Tuple{lineno, scanner.Text()}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", f.filename, err)
	}
	return nil
}

// splitOn returns a bufio.SplitFunc that splits on delim. A trailing
// delimiter does not produce an empty final record.
func splitOn(delim []byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.Index(data, delim); i >= 0 {
			return i + len(delim), data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

func fileReaderSchema() types.Schema {
	return types.NewSchema([]string{"lineno"}, "text")
}

// Periodic is a right-hand-side-only collection the engine fills on a fixed
// interval. Each firing adds an (ident, time) tuple.
type Periodic struct {
	*base
	period   time.Duration
	schedule cron.Schedule
}

// Period returns the declared interval.
func (p *Periodic) Period() time.Duration { return p.period }

// Schedule returns the firing schedule. It has one-second resolution.
func (p *Periodic) Schedule() cron.Schedule { return p.schedule }

// Next returns the first firing time after t.
func (p *Periodic) Next(t time.Time) time.Time { return p.schedule.Next(t) }

// Insert always fails; the contents come from Fire.
func (p *Periodic) Insert(types.Tuple) error {
	return fmt.Errorf("%w: %s is filled by its schedule", types.ErrReadOnlyCollection, p.name)
}

// Fire records one firing at t and returns the tuple added.
func (p *Periodic) Fire(t time.Time) (types.Tuple, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	tu := types.Tuple{id.String(), t}
	if _, err := p.insert(tu); err != nil {
		return nil, err
	}
	return tu, nil
}
