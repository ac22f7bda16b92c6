// Package sensor reads meat-probe reading files.
//
// A reading file is UTF-8 text with one reading per line:
//
//	42,15/12/2015 02:16:14,37.0
//
// i.e. probe id, local timestamp (day/month/year) and temperature. Header
// lines contain a marker token and are skipped. Lines that do not split
// into exactly three fields, or whose fields do not parse, are dropped
// without error; only directory and file I/O failures are reported.
package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // reference zone must resolve on hosts without zoneinfo

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/provstream/internal/ir"
)

const (
	// DefaultMarker identifies header lines.
	DefaultMarker = "MeatProbe"
	// DefaultLocation is the zone reading timestamps are recorded in.
	DefaultLocation = "Europe/London"
	// TimestampLayout is the reading timestamp format.
	TimestampLayout = "02/01/2006 15:04:05"
)

// Parser reads every reading file under a directory.
type Parser struct {
	dir      string
	pattern  string
	marker   string
	location *time.Location
}

// Option configures a Parser.
type Option func(*Parser)

// WithPattern restricts parsing to files whose slash-separated path
// relative to the directory matches a doublestar glob, e.g. "**/*.csv".
func WithPattern(pattern string) Option {
	return func(p *Parser) {
		p.pattern = pattern
	}
}

// WithMarker sets the header marker token.
func WithMarker(marker string) Option {
	return func(p *Parser) {
		p.marker = marker
	}
}

// WithLocation sets the zone timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		p.location = loc
	}
}

// NewParser creates a parser for dir. An invalid pattern or an unknown
// default zone is a ConfigurationError.
func NewParser(dir string, opts ...Option) (*Parser, error) {
	p := &Parser{dir: dir, marker: DefaultMarker}
	for _, opt := range opts {
		opt(p)
	}
	if p.location == nil {
		loc, err := time.LoadLocation(DefaultLocation)
		if err != nil {
			return nil, ir.ConfigurationError("load reference time zone", err)
		}
		p.location = loc
	}
	if p.pattern != "" && !doublestar.ValidatePattern(p.pattern) {
		return nil, ir.ConfigurationError(fmt.Sprintf("invalid file pattern %q", p.pattern), nil)
	}
	return p, nil
}

// Parse returns every reading in file order, files in lexical path order.
func (p *Parser) Parse(ctx context.Context) ([]ir.Reading, error) {
	var out []ir.Reading
	err := p.Each(ctx, func(r ir.Reading) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// Each calls fn for every reading. An error from fn stops the walk and is
// returned unchanged; I/O failures are FileIOErrors.
func (p *Parser) Each(ctx context.Context, fn func(ir.Reading) error) error {
	files, err := p.files()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.parseFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p.pattern != "" {
			rel, err := filepath.Rel(p.dir, path)
			if err != nil {
				return err
			}
			if ok, _ := doublestar.Match(p.pattern, filepath.ToSlash(rel)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, ir.FileIOError(fmt.Sprintf("walk reading directory %s", p.dir), err)
	}
	return files, nil
}

func (p *Parser) parseFile(path string, fn func(ir.Reading) error) error {
	f, err := os.Open(path)
	if err != nil {
		return ir.FileIOError(fmt.Sprintf("open reading file %s", path), err)
	}
	defer f.Close()

	var kept, dropped int
	// No line length limit: an overlong line is just another unparsable row.
	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return ir.FileIOError(fmt.Sprintf("read reading file %s", path), readErr)
		}
		if readErr == io.EOF && line == "" {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if p.marker == "" || !strings.Contains(line, p.marker) {
			if r, ok := ParseLine(line, p.location); ok {
				kept++
				if err := fn(r); err != nil {
					return err
				}
			} else {
				dropped++
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	slog.Debug("reading file parsed", "path", path, "readings", kept, "dropped", dropped)
	return nil
}

// ParseLine parses one "id,timestamp,value" line. It reports false for
// anything other than exactly three well-formed fields.
func ParseLine(line string, loc *time.Location) (ir.Reading, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return ir.Reading{}, false
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return ir.Reading{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, parts[1], loc)
	if err != nil {
		return ir.Reading{}, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return ir.Reading{}, false
	}
	return ir.Reading{ID: id, Timestamp: ts, Value: value}, true
}
