package shlex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBasic(t *testing.T) {
	toks, err := Split(`clang++ -DFOO=1 -I/usr/include a.cc`)
	require.NoError(t, err)
	assert.Equal(t, []string{"clang++", "-DFOO=1", "-I/usr/include", "a.cc"}, toks)
}

func TestSplitSingleQuotesNoInterpretation(t *testing.T) {
	toks, err := Split(`echo '$HOME and \n'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "$HOME and \\n"}, toks)
}

func TestSplitDoubleQuotesBackslashEscapesOneChar(t *testing.T) {
	toks, err := Split(`echo "a\"b"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", `a"b`}, toks)
}

func TestSplitCollapsesWhitespace(t *testing.T) {
	toks, err := Split("a   b\tc")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, toks)
}
