// Package csvcodec parses delimited text into header-mapped records.
//
// The format is deliberately narrow: the first non-blank line names the
// fields, every later non-blank line is one record, and there is no quoting
// or escaping in the source files. That rules out encoding/csv, whose quote
// handling and uniform field-count errors do not match the required
// per-row malformed policy.
package csvcodec

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/pkg/types"
)

// MalformedPolicy controls what the decoder does with rows whose field count
// does not match the header.
type MalformedPolicy int

const (
	// DropMalformed skips mismatched rows and logs each one.
	DropMalformed MalformedPolicy = iota
	// FailOnMalformed aborts decoding at the first mismatched row.
	FailOnMalformed
)

// Options configures a Decoder.
type Options struct {
	// Delimiter is the field separator. Defaults to ','.
	Delimiter byte
	// Malformed selects the bad-row policy. Defaults to DropMalformed.
	Malformed MalformedPolicy
	// Source names the input in logs (typically the artifact key).
	Source string
}

// Decoder reads records from a delimited text stream, one row at a time.
// It is single-pass and never materializes the whole input.
type Decoder struct {
	scanner    *bufio.Scanner
	opts       Options
	delim      string
	header     []string
	headerRead bool
	line       int
	dropped    int
}

// NewDecoder creates a Decoder over r.
func NewDecoder(r io.Reader, opts Options) *Decoder {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Decoder{
		scanner: scanner,
		opts:    opts,
		delim:   string(opts.Delimiter),
	}
}

// Header returns the field names, available after the first call to Next.
func (d *Decoder) Header() []string {
	return d.header
}

// Dropped returns the number of rows skipped under DropMalformed.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Next returns the next record. It returns io.EOF when the input is
// exhausted; a header-only or empty file yields io.EOF immediately.
func (d *Decoder) Next() (types.RawRecord, error) {
	if !d.headerRead {
		if err := d.readHeader(); err != nil {
			return nil, err
		}
	}

	for {
		line, err := d.nextLine()
		if err != nil {
			return nil, err
		}

		fields := strings.Split(line, d.delim)
		if len(fields) != len(d.header) {
			if d.opts.Malformed == FailOnMalformed {
				return nil, pErrors.NewDecodeError(pErrors.CodeMalformedRow, "row field count does not match header", nil).
					WithDetails(map[string]interface{}{"line": d.line, "fields": len(fields), "header_fields": len(d.header)})
			}
			d.dropped++
			log.Warn().
				Str("source", d.opts.Source).
				Int("line", d.line).
				Int("fields", len(fields)).
				Int("header_fields", len(d.header)).
				Msg("dropping malformed row")
			continue
		}

		record := make(types.RawRecord, len(fields))
		for i, name := range d.header {
			record[name] = fields[i]
		}
		return record, nil
	}
}

// readHeader consumes lines until the first non-blank one and parses it.
func (d *Decoder) readHeader() error {
	line, err := d.nextLine()
	if err != nil {
		if err == io.EOF {
			// Empty file: no header, no records.
			d.header = nil
			d.headerRead = true
			return io.EOF
		}
		return err
	}

	names := strings.Split(line, d.delim)
	d.header = make([]string, len(names))
	for i, name := range names {
		d.header[i] = strings.TrimSpace(name)
	}
	d.headerRead = true
	return nil
}

// nextLine returns the next non-blank line, validating UTF-8.
func (d *Decoder) nextLine() (string, error) {
	for d.scanner.Scan() {
		d.line++
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if !utf8.ValidString(line) {
			return "", pErrors.NewDecodeError(pErrors.CodeInvalidUTF8, "artifact is not valid UTF-8 text", nil).
				WithDetails(map[string]interface{}{"line": d.line})
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, nil
	}
	if err := d.scanner.Err(); err != nil {
		// A line over the buffer cap is a property of the artifact and will
		// fail the same way on every redelivery; only reader failures are
		// worth retrying.
		if errors.Is(err, bufio.ErrTooLong) {
			return "", pErrors.NewDecodeError(pErrors.CodeMalformedRow, "line exceeds maximum length", err).
				WithDetails(map[string]interface{}{"line": d.line + 1})
		}
		return "", pErrors.NewStorageError(pErrors.CodeFetchFailed, "reading artifact stream", err)
	}
	return "", io.EOF
}

// DecodeAll drains the decoder, returning every record. Intended for tests
// and small inputs; the pipeline itself iterates with Next.
func DecodeAll(r io.Reader, opts Options) ([]types.RawRecord, error) {
	dec := NewDecoder(r, opts)
	var records []types.RawRecord
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}
