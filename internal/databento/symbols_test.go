package databento

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActiveContracts(t *testing.T) {
	for _, tc := range []struct {
		name string
		root string
		asOf time.Time
		want []string
	}{
		{
			name: "mid year",
			root: "ES",
			asOf: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			want: []string{"ESH24", "ESJ24", "ESK24", "ESM24"},
		},
		{
			name: "rolls across december",
			root: "CL",
			asOf: time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC),
			want: []string{"CLX24", "CLZ24", "CLF25", "CLG25"},
		},
		{
			name: "century wrap on 2-digit year",
			root: "GC",
			asOf: time.Date(2099, 12, 1, 0, 0, 0, 0, time.UTC),
			want: []string{"GCZ99", "GCF00", "GCG00", "GCH00"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ActiveContracts(tc.root, tc.asOf))
		})
	}
}

func TestFuturesSymbolTables(t *testing.T) {
	roots := FuturesRootSymbols()
	require.Len(t, roots, len(FuturesRoots))
	require.Contains(t, roots, "6E")

	symbols := FuturesDBSymbols()
	// the map is not injective, but db symbols must be unique
	seen := map[string]bool{}
	for _, s := range symbols {
		require.False(t, seen[s], "duplicate db symbol %s", s)
		seen[s] = true
	}
	require.Contains(t, symbols, "SM")
	require.Contains(t, symbols, "BO")
	require.NotContains(t, symbols, "ZM")
}
