package lang

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalizesCase(t *testing.T) {
	got, err := Normalize("en-us")
	require.NoError(t, err)
	require.Equal(t, "en-US", got)

	got, err = Normalize(" AUTO ")
	require.NoError(t, err)
	require.Equal(t, Auto, got)

	_, err = Normalize("not a tag!")
	require.Error(t, err)
}

func TestResolveSubstitutesFallbackForAuto(t *testing.T) {
	require.Equal(t, "en-US", Resolve("auto", "en-US"))
	require.Equal(t, "en-US", Resolve("", "en-us"))
	require.Equal(t, "es-ES", Resolve("es-es", "en-US"))
}

func TestSameComparesResolvedCodes(t *testing.T) {
	require.True(t, Same("en-us", "en-US", "de-DE"))
	require.True(t, Same("auto", "en-US", "en-US"))
	require.False(t, Same("en-US", "en-GB", "en-US"))
	require.False(t, Same("auto", "es-ES", "en-US"))
}

func TestBase(t *testing.T) {
	require.Equal(t, "es", Base("es-ES"))
	require.Equal(t, "pt", Base("pt-br"))
	require.Equal(t, "xx", Base("XX_yy!"))
}
