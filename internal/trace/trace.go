// Package trace parses allocation trace files in the classic
// malloc-driver format: four header lines (suggested heap size, id count,
// operation count, weight) followed by one operation per line.
//
//	20000
//	3
//	8
//	1
//	a 0 512
//	a 1 128
//	r 0 640
//	f 1
//	...
//
// Allocation ids index a per-trace table of live references: an id is
// assigned by an "a" line, may be resized by "r" lines, and is retired by
// an "f" line.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Kind identifies one trace operation.
type Kind int

const (
	Alloc Kind = iota
	Realloc
	Free
)

func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Realloc:
		return "realloc"
	case Free:
		return "free"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Op is one parsed trace line.
type Op struct {
	Kind Kind
	ID   int
	Size int // requested bytes; unused for Free
}

// Trace is one parsed trace file.
type Trace struct {
	IDs    int // number of distinct allocation ids
	Weight int
	Ops    []Op
}

// ParseFile reads and parses the trace at path.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads a trace from r. Blank lines are skipped; any malformed line
// fails the whole parse with its line number.
func Parse(r io.Reader) (*Trace, error) {
	sc := &lineScanner{sc: bufio.NewScanner(r)}

	// Header: suggested heap size (ignored), id count, op count, weight.
	if _, err := sc.nextInt("suggested heap size"); err != nil {
		return nil, err
	}
	ids, err := sc.nextInt("id count")
	if err != nil {
		return nil, err
	}
	if ids < 0 {
		return nil, fmt.Errorf("trace: line %d: negative id count %d", sc.line, ids)
	}
	nops, err := sc.nextInt("op count")
	if err != nil {
		return nil, err
	}
	if nops < 0 {
		return nil, fmt.Errorf("trace: line %d: negative op count %d", sc.line, nops)
	}
	weight, err := sc.nextInt("weight")
	if err != nil {
		return nil, err
	}

	// The header count is a capped preallocation hint; the walk below
	// enforces the real one.
	t := &Trace{IDs: ids, Weight: weight, Ops: make([]Op, 0, min(nops, 4096))}
	for {
		fields, err := sc.nextFields()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		op, err := parseOp(fields, ids, sc.line)
		if err != nil {
			return nil, err
		}
		t.Ops = append(t.Ops, op)
	}
	if len(t.Ops) != nops {
		return nil, fmt.Errorf("trace: header declares %d ops, found %d", nops, len(t.Ops))
	}
	return t, nil
}

func parseOp(fields []string, ids, line int) (Op, error) {
	var op Op
	var wantFields int
	switch fields[0] {
	case "a":
		op.Kind = Alloc
		wantFields = 3
	case "r":
		op.Kind = Realloc
		wantFields = 3
	case "f":
		op.Kind = Free
		wantFields = 2
	default:
		return Op{}, fmt.Errorf("trace: line %d: unknown op %q", line, fields[0])
	}
	if len(fields) != wantFields {
		return Op{}, fmt.Errorf("trace: line %d: op %q takes %d fields, got %d",
			line, fields[0], wantFields, len(fields))
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= ids {
		return Op{}, fmt.Errorf("trace: line %d: id %q out of range [0,%d)", line, fields[1], ids)
	}
	op.ID = id
	if wantFields == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("trace: line %d: bad size %q", line, fields[2])
		}
		op.Size = size
	}
	return op, nil
}

// lineScanner yields non-blank lines with 1-based line numbers.
type lineScanner struct {
	sc   *bufio.Scanner
	line int
}

func (s *lineScanner) nextFields() ([]string, error) {
	for s.sc.Scan() {
		s.line++
		fields := strings.Fields(s.sc.Text())
		if len(fields) == 0 {
			continue
		}
		return fields, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: read: %w", err)
	}
	return nil, io.EOF
}

func (s *lineScanner) nextInt(what string) (int, error) {
	fields, err := s.nextFields()
	if err == io.EOF {
		return 0, fmt.Errorf("trace: missing %s in header", what)
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("trace: line %d: bad %s %q", s.line, what, fields[0])
	}
	return n, nil
}
