package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_LiteralEncodesStrings(t *testing.T) {
	tmpl := Must("assign", `el.value = {{.Value}};`)

	out, err := tmpl.Render(Params{"Value": `"; alert(1); "`})
	require.NoError(t, err)
	assert.Equal(t, `el.value = "\"; alert(1); \"";`, out.String())
}

func TestRender_EscapesScriptClose(t *testing.T) {
	tmpl := Must("assign", `x = {{.V}}`)

	out, err := tmpl.Render(Params{"V": "</script><script>evil()</script>"})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "</script>")
}

func TestRender_EscapesLineSeparators(t *testing.T) {
	tmpl := Must("assign", `x = {{.V}}`)

	out, err := tmpl.Render(Params{"V": "a\u2028b\u2029c\nd"})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "\u2028")
	assert.NotContains(t, out.String(), "\u2029")
	assert.NotContains(t, out.String(), "\n")
}

func TestRender_FragmentIsVerbatim(t *testing.T) {
	inner := Must("inner", `document.body`)
	frag, err := inner.Render(nil)
	require.NoError(t, err)

	outer := Must("outer", `({{.Target}}).focus()`)
	out, err := outer.Render(Params{"Target": frag})
	require.NoError(t, err)
	assert.Equal(t, `(document.body).focus()`, out.String())
}

func TestRender_NonStringLiterals(t *testing.T) {
	tmpl := Must("mix", `f({{.N}}, {{.B}}, {{.L}}, {{.Nil}})`)

	out, err := tmpl.Render(Params{"N": 250, "B": true, "L": []string{"a", "b"}, "Nil": nil})
	require.NoError(t, err)
	assert.Equal(t, `f(250, true, ["a","b"], null)`, out.String())
}

func TestRender_MissingParam(t *testing.T) {
	tmpl := Must("missing", `f({{.Absent}})`)

	_, err := tmpl.Render(Params{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}

func TestRender_UnencodableParam(t *testing.T) {
	tmpl := Must("bad", `f({{.C}})`)

	_, err := tmpl.Render(Params{"C": make(chan int)})
	require.Error(t, err)
}

func TestNew_ParseError(t *testing.T) {
	_, err := New("broken", `{{.Unclosed`)
	require.Error(t, err)
}

func TestCall(t *testing.T) {
	out, err := Call("localStorage", "setItem", `k"`, "v\\")
	require.NoError(t, err)
	assert.Equal(t, `localStorage.setItem("k\"", "v\\")`, out.String())
}
