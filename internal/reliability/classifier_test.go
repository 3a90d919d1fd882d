package reliability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{403, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, IsRetryableHTTPStatus(tc.code), "code %d", tc.code)
	}
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "transport", StatusClass(0))
	require.Equal(t, "auth", StatusClass(401))
	require.Equal(t, "rate_limited", StatusClass(429))
	require.Equal(t, "client", StatusClass(422))
	require.Equal(t, "upstream", StatusClass(502))
	require.Equal(t, "ok", StatusClass(204))
}
