package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextStripsMarkup(t *testing.T) {
	require.Equal(t, "Dana", Text("<b>Dana</b>"))
	require.Equal(t, "Dana", Text(`<img src=x onerror=alert(1)>Dana`))
	require.Equal(t, "Acme Corp", Text("  Acme \t\n Corp  "))
	require.Equal(t, "", Text("<script>alert(1)</script>"))
}

func TestTextPlainPassesThrough(t *testing.T) {
	require.Equal(t, "Dana from Acme", Text("Dana from Acme"))
}

func TestBlockKeepsLineStructure(t *testing.T) {
	in := "Senior Go Engineer\n\n<b>Requirements:</b>\n  - 5 years   Go\n  - Kubernetes\n"
	want := "Senior Go Engineer\nRequirements:\n- 5 years Go\n- Kubernetes"
	require.Equal(t, want, Block(in))
}

func TestBlockDropsEmptyLines(t *testing.T) {
	require.Equal(t, "a\nb", Block("a\n\n\n   \nb"))
}
