package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	in := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := Redact(in)
	require.True(t, changed)
	require.Contains(t, out, "[email]")
	require.Contains(t, out, "[phone]")
	require.Contains(t, out, "[card]")
	require.NotContains(t, out, "sam@example.com")
	require.NotContains(t, out, "4242")
}

func TestRedactLeavesPlainSpeech(t *testing.T) {
	out, changed := Redact("see you at 5 tomorrow")
	require.False(t, changed)
	require.Equal(t, "see you at 5 tomorrow", out)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "hola", Preview("  hola  ", 10))
	require.Equal(t, "mañan…", Preview("mañana por la tarde", 5))
	require.Equal(t, "write [email]", Preview("write a@b.io", 0))
}
