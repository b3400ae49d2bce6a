package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/fleetplan/core/milp"
)

const termsPerLine = 6

func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// lpName maps a model name onto the LP file character set.
func lpName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '[':
			return '('
		case r == ']':
			return ')'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("!\"#$%&()/,.;?@_`'{}|~", r):
			return r
		default:
			return '_'
		}
	}, s)
}

// WriteLP writes m in CPLEX LP text format.
func WriteLP(w io.Writer, m *milp.Model) error {
	bw := bufio.NewWriter(w)
	name := func(j int) string { return lpName(m.Vars[j].Name) }
	expr := func(terms []milp.Term) {
		if len(terms) == 0 {
			fmt.Fprint(bw, " 0 "+name(0))
			return
		}
		for i, t := range terms {
			if i > 0 && i%termsPerLine == 0 {
				fmt.Fprint(bw, "\n  ")
			}
			sign := "+"
			if t.Coef < 0 {
				sign = "-"
			}
			if i == 0 && sign == "+" {
				fmt.Fprintf(bw, " %s %s", num(t.Coef), name(t.Var))
				continue
			}
			fmt.Fprintf(bw, " %s %s %s", sign, num(math.Abs(t.Coef)), name(t.Var))
		}
	}

	fmt.Fprintf(bw, "\\ %s\n", m.Name)
	if m.Objective.Sense == milp.Maximize {
		fmt.Fprintln(bw, "Maximize")
	} else {
		fmt.Fprintln(bw, "Minimize")
	}
	fmt.Fprint(bw, " obj:")
	if len(m.Vars) > 0 {
		expr(milp.Compact(m.Objective.Terms))
	}
	if c := m.Objective.Constant; c != 0 {
		fmt.Fprintf(bw, " + %s constant", num(c))
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Subject To")
	for _, c := range m.Constraints {
		if len(c.Terms) == 0 {
			continue
		}
		fmt.Fprintf(bw, " %s:", lpName(c.Name))
		expr(c.Terms)
		op := map[milp.Sense]string{milp.LE: "<=", milp.GE: ">=", milp.EQ: "="}[c.Sense]
		fmt.Fprintf(bw, " %s %s\n", op, num(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	if m.Objective.Constant != 0 {
		fmt.Fprintln(bw, " constant = 1")
	}
	var general, binary []string
	for j, v := range m.Vars {
		n := name(j)
		lo, hi := v.Lower, v.Upper
		switch {
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			fmt.Fprintf(bw, " %s free\n", n)
		case lo == hi:
			fmt.Fprintf(bw, " %s = %s\n", n, num(lo))
		case math.IsInf(hi, 1):
			if lo != 0 {
				fmt.Fprintf(bw, " %s >= %s\n", n, num(lo))
			}
		case math.IsInf(lo, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", n, num(hi))
		case v.Kind == milp.Binary && lo == 0 && hi == 1:
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(lo), n, num(hi))
		}
		switch {
		case v.Kind == milp.Binary && lo == 0 && hi == 1:
			binary = append(binary, n)
		case v.Kind.IsInteger():
			general = append(general, n)
		}
	}
	writeList := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintln(bw, title)
		for i := 0; i < len(names); i += termsPerLine {
			end := min(i+termsPerLine, len(names))
			fmt.Fprintf(bw, " %s\n", strings.Join(names[i:end], " "))
		}
	}
	writeList("General", general)
	writeList("Binary", binary)
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

// MPSOptions controls WriteMPS.
type MPSOptions struct {
	// GenericNames replaces row and column names by R<i> and C<j>.
	GenericNames bool
}

func mpsName(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, s)
}

// WriteMPS writes m in free MPS format. Integer columns are enclosed in
// MARKER lines and every column carries explicit bounds. The objective
// constant is stored as the negated right-hand side of the objective row.
func WriteMPS(w io.Writer, m *milp.Model, opts MPSOptions) error {
	col := func(j int) string {
		if opts.GenericNames {
			return "C" + strconv.Itoa(j+1)
		}
		return mpsName(m.Vars[j].Name)
	}
	row := func(i int) string {
		if opts.GenericNames {
			return "R" + strconv.Itoa(i+1)
		}
		return mpsName(m.Constraints[i].Name)
	}

	bw := bufio.NewWriter(w)
	name := mpsName(m.Name)
	if name == "" {
		name = "model"
	}
	fmt.Fprintf(bw, "NAME %s\n", name)
	if m.Objective.Sense == milp.Maximize {
		fmt.Fprintln(bw, "OBJSENSE")
		fmt.Fprintln(bw, "    MAX")
	}
	fmt.Fprintln(bw, "ROWS")
	fmt.Fprintln(bw, " N obj")
	for i, c := range m.Constraints {
		fmt.Fprintf(bw, " %s %s\n", map[milp.Sense]string{milp.LE: "L", milp.GE: "G", milp.EQ: "E"}[c.Sense], row(i))
	}

	// column-major view of the rows
	entries := make([][]milp.Term, len(m.Vars))
	for i, c := range m.Constraints {
		for _, t := range c.Terms {
			entries[t.Var] = append(entries[t.Var], milp.Term{Var: i, Coef: t.Coef})
		}
	}
	cost := m.ObjectiveCoefficients()

	fmt.Fprintln(bw, "COLUMNS")
	inInt, marker := false, 0
	for j, v := range m.Vars {
		if v.Kind.IsInteger() != inInt {
			marker++
			tag := "'INTEND'"
			if !inInt {
				tag = "'INTORG'"
			}
			fmt.Fprintf(bw, " M%d 'MARKER' %s\n", marker, tag)
			inInt = !inInt
		}
		fmt.Fprintf(bw, " %s obj %s\n", col(j), num(cost[j]))
		for _, e := range entries[j] {
			fmt.Fprintf(bw, " %s %s %s\n", col(j), row(e.Var), num(e.Coef))
		}
	}
	if inInt {
		fmt.Fprintf(bw, " M%d 'MARKER' 'INTEND'\n", marker+1)
	}

	fmt.Fprintln(bw, "RHS")
	if c := m.Objective.Constant; c != 0 {
		fmt.Fprintf(bw, " RHS obj %s\n", num(-c))
	}
	for i, c := range m.Constraints {
		if c.RHS != 0 {
			fmt.Fprintf(bw, " RHS %s %s\n", row(i), num(c.RHS))
		}
	}

	fmt.Fprintln(bw, "BOUNDS")
	for j, v := range m.Vars {
		n := col(j)
		lo, hi := v.Lower, v.Upper
		switch {
		case lo == hi:
			fmt.Fprintf(bw, " FX BND %s %s\n", n, num(lo))
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			fmt.Fprintf(bw, " FR BND %s\n", n)
		case math.IsInf(lo, -1):
			fmt.Fprintf(bw, " MI BND %s\n", n)
			fmt.Fprintf(bw, " UP BND %s %s\n", n, num(hi))
		default:
			if math.IsInf(hi, 1) {
				fmt.Fprintf(bw, " PL BND %s\n", n)
			} else {
				fmt.Fprintf(bw, " UP BND %s %s\n", n, num(hi))
			}
			fmt.Fprintf(bw, " LO BND %s %s\n", n, num(lo))
		}
	}
	fmt.Fprintln(bw, "ENDATA")
	return bw.Flush()
}
