package cookie

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseValidLine(t *testing.T) {
	line := "example.com\tTRUE\t/\tFALSE\t1700000000\tsession\tabc123"
	c, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "example.com", c.Domain)
	require.True(t, c.IncludeSubdomains)
	require.Equal(t, "/", c.Path)
	require.False(t, c.Secure)
	require.Equal(t, int64(1700000000), c.Expires.Unix())
	require.Equal(t, "session", c.Name)
	require.Equal(t, "abc123", c.Value)
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse("example.com\tTRUE\t/\tFALSE\t1700000000\tsession")
	require.Error(t, err)
}

func TestParseRejectsInvalidBooleanField(t *testing.T) {
	_, err := Parse("example.com\tYES\t/\tFALSE\t1700000000\tsession\tabc123")
	require.Error(t, err)
}

func TestParseSerializeRoundTrip(t *testing.T) {
	line := "example.com\tFALSE\t/app\tTRUE\t1712345678\tuid\tu-42"
	c, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, line, c.Serialize())
}

func TestCompareOrdersLexicographically(t *testing.T) {
	a := Cookie{Domain: "a.com", Name: "n", Value: "v", Expires: time.Unix(1, 0)}
	b := Cookie{Domain: "b.com", Name: "n", Value: "v", Expires: time.Unix(1, 0)}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.True(t, a.Equal(a))
	require.False(t, a.Equal(b))
}

func TestCompareFallsThroughFieldsInOrder(t *testing.T) {
	base := Cookie{Domain: "x.com", Path: "/", Name: "n", Value: "v", Expires: time.Unix(5, 0)}
	laterExpiry := base
	laterExpiry.Expires = time.Unix(10, 0)
	require.True(t, base.Less(laterExpiry))

	secureVariant := base
	secureVariant.Secure = true
	require.True(t, base.Less(secureVariant), "FALSE sorts before TRUE")
}
