package glpsol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMIPSolution(t *testing.T) {
	raw := `c Problem:    model
c Status:     INTEGER OPTIMAL
s mip 2 3 o 12.5
i 1 4
i 2 0
j 1 1
j 2 0
j 3 2.5
e o f
`
	sol, err := parseSolution(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "mip", sol.kind)
	assert.Equal(t, byte('o'), sol.status)
	assert.Equal(t, 12.5, sol.obj)
	assert.Equal(t, []float64{1, 0, 2.5}, sol.cols)
}

func TestParseBasicSolution(t *testing.T) {
	raw := `s bas 1 2 f f -3
i 1 u 7 -1
j 1 b 3 0
j 2 l 0 1
e o f
`
	sol, err := parseSolution(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "bas", sol.kind)
	assert.Equal(t, byte('f'), sol.dual)
	assert.Equal(t, []float64{3, 0}, sol.cols)
}

func TestParseSolutionErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":        "",
		"short status": "s mip 1 2\n",
		"bad kind":     "s foo 1 2 o 0\n",
		"column first": "j 1 0\n",
		"bad index":    "s mip 1 2 o 0\nj 3 1\n",
		"bad value":    "s mip 1 2 o 0\nj 1 x\n",
		"unknown":      "s mip 1 2 o 0\nz\n",
	} {
		_, err := parseSolution(strings.NewReader(raw))
		assert.Error(t, err, name)
	}
}
