package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader map[string]string

func (m mapReader) ReadSource(locator string) (string, error) {
	if src, ok := m[locator]; ok {
		return src, nil
	}
	return "", ErrExtraction
}

const funcSource = `
func Greet(name string) string {
	return "hello " + name
}

func Sum(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}
`

const classSource = `
import "strings"

type Formatter struct {
	Prefix string
}

func NewFormatter(prefix string) *Formatter {
	return &Formatter{Prefix: prefix}
}

func (f *Formatter) Format(s string) string {
	return f.Prefix + strings.ToUpper(s)
}
`

func testReader() mapReader {
	return mapReader{
		"src/funcs":  funcSource,
		"src/fmtcls": classSource,
	}
}

func TestResolveFunc(t *testing.T) {
	x := NewInterpreter(testReader())

	exec, err := x.Resolve(Spec{FuncName: "Greet"}, "src/funcs")
	require.NoError(t, err)
	assert.Equal(t, KindFunc, exec.Kind())
	assert.Equal(t, "Greet", exec.Symbol())

	out, err := exec.Invoke("world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestResolveVariadicFunc(t *testing.T) {
	x := NewInterpreter(testReader())

	exec, err := x.Resolve(Spec{FuncName: "Sum"}, "src/funcs")
	require.NoError(t, err)

	out, err := exec.Invoke(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, out)
}

func TestResolveClassWithConstructor(t *testing.T) {
	x := NewInterpreter(testReader())

	exec, err := x.Resolve(Spec{ClassName: "Formatter"}, "src/fmtcls")
	require.NoError(t, err)
	assert.Equal(t, KindClass, exec.Kind())

	inst, ok := exec.(Instantiator)
	require.True(t, ok)
	wrapped, err := inst.Instantiate("log: ")
	require.NoError(t, err)
	assert.Equal(t, KindValue, wrapped.Kind())

	format, err := wrapped.Attr("Format")
	require.NoError(t, err)
	fn, ok := format.(func(string) string)
	require.True(t, ok)
	assert.Equal(t, "log: HI", fn("hi"))

	prefix, err := wrapped.Attr("Prefix")
	require.NoError(t, err)
	assert.Equal(t, "log: ", prefix)
}

func TestResolveSpecMutualExclusion(t *testing.T) {
	x := NewInterpreter(testReader())

	_, err := x.Resolve(Spec{ClassName: "A", FuncName: "B"}, "src/funcs")
	assert.ErrorIs(t, err, ErrBadSpec)

	_, err = x.Resolve(Spec{}, "src/funcs")
	assert.ErrorIs(t, err, ErrBadSpec)
}

func TestResolveMissingSymbol(t *testing.T) {
	x := NewInterpreter(testReader())

	_, err := x.Resolve(Spec{FuncName: "Nope"}, "src/funcs")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestResolveMissingSource(t *testing.T) {
	x := NewInterpreter(testReader())

	_, err := x.Resolve(Spec{FuncName: "Greet"}, "src/gone")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestResolveRejectsDisallowedImports(t *testing.T) {
	reader := mapReader{
		"src/evil": "import \"os\"\n\nfunc Evil() string { return os.Getenv(\"HOME\") }\n",
	}
	x := NewInterpreter(reader)

	_, err := x.Resolve(Spec{FuncName: "Evil"}, "src/evil")
	require.ErrorIs(t, err, ErrExtraction)
	assert.Contains(t, err.Error(), "disallowed imports")
}

func TestInvokeArgMismatch(t *testing.T) {
	x := NewInterpreter(testReader())

	exec, err := x.Resolve(Spec{FuncName: "Greet"}, "src/funcs")
	require.NoError(t, err)

	_, err = exec.Invoke()
	assert.ErrorIs(t, err, ErrBadArgs)

	_, err = exec.Invoke(42)
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestInvokeCoercesJSONNumbers(t *testing.T) {
	x := NewInterpreter(testReader())

	exec, err := x.Resolve(Spec{FuncName: "Sum"}, "src/funcs")
	require.NoError(t, err)

	// Args loaded back from a persisted record arrive as float64.
	out, err := exec.Invoke(float64(2), float64(3))
	require.NoError(t, err)
	assert.Equal(t, 5, out)
}

func TestWrapValueAttr(t *testing.T) {
	type probe struct{ Level int }

	w := Wrap("probe", probe{Level: 3})
	v, err := w.Attr("Level")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = w.Attr("Missing")
	assert.ErrorIs(t, err, ErrNoAttr)

	_, err = w.Invoke()
	assert.ErrorIs(t, err, ErrNotInvocable)
}
