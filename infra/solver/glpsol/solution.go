package glpsol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// solution is the content of a GLPK raw solution file (glpsol -w).
type solution struct {
	kind   string // "mip", "bas" or "ipt"
	status byte   // mip/ipt status, or primal status for bas
	dual   byte   // dual status, bas only
	obj    float64
	cols   []float64
}

// parseSolution reads the plain-text solution written by glpsol. Only column
// values are kept.
func parseSolution(r io.Reader) (*solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	var sol *solution
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "c":
		case "s":
			s, err := parseStatus(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			sol = s
		case "j":
			if sol == nil {
				return nil, fmt.Errorf("line %d: column before solution line", line)
			}
			if err := sol.setColumn(f); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		case "i":
			if sol == nil {
				return nil, fmt.Errorf("line %d: row before solution line", line)
			}
		case "e":
			if sol == nil {
				return nil, fmt.Errorf("line %d: empty solution", line)
			}
			return sol, nil
		default:
			return nil, fmt.Errorf("line %d: unexpected record %q", line, f[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sol == nil {
		return nil, fmt.Errorf("no solution line")
	}
	return sol, nil
}

func parseStatus(f []string) (*solution, error) {
	if len(f) < 6 {
		return nil, fmt.Errorf("short solution line %q", strings.Join(f, " "))
	}
	cols, err := strconv.Atoi(f[3])
	if err != nil {
		return nil, fmt.Errorf("column count: %w", err)
	}
	s := &solution{kind: f[1], cols: make([]float64, cols)}
	objField := 5
	switch s.kind {
	case "mip", "ipt":
		s.status = f[4][0]
	case "bas":
		if len(f) < 7 {
			return nil, fmt.Errorf("short basic solution line %q", strings.Join(f, " "))
		}
		s.status, s.dual = f[4][0], f[5][0]
		objField = 6
	default:
		return nil, fmt.Errorf("unknown solution kind %q", s.kind)
	}
	if s.obj, err = strconv.ParseFloat(f[objField], 64); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	return s, nil
}

func (s *solution) setColumn(f []string) error {
	// mip: j col val; ipt: j col prim dual; bas: j col st prim dual
	valField := 2
	if s.kind == "bas" {
		valField = 3
	}
	if len(f) <= valField {
		return fmt.Errorf("short column line %q", strings.Join(f, " "))
	}
	j, err := strconv.Atoi(f[1])
	if err != nil || j < 1 || j > len(s.cols) {
		return fmt.Errorf("bad column index %q", f[1])
	}
	v, err := strconv.ParseFloat(f[valField], 64)
	if err != nil {
		return fmt.Errorf("column %d: %w", j, err)
	}
	s.cols[j-1] = v
	return nil
}
