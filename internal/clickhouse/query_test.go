package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/schema"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		spec     core.SelectSpec
		want     string
		wantKind core.Kind
	}{
		{
			name: "single table",
			spec: core.SelectSpec{Selection: core.Selection{Tables: []string{"sales"}}, Columns: []string{"date", "amount"}},
			want: "SELECT `date`, `amount` FROM `sales`",
		},
		{
			name: "preview limit",
			spec: core.SelectSpec{Selection: core.Selection{Tables: []string{"sales"}}, Columns: []string{"date"}, Limit: 100},
			want: "SELECT `date` FROM `sales` LIMIT 100",
		},
		{
			name: "join",
			spec: core.SelectSpec{
				Selection: core.Selection{Tables: []string{"orders", "customers"}, JoinCondition: "orders.customer_id = customers.id"},
				Columns:   []string{"orders.id", "customers.name"},
			},
			want: "SELECT `orders`.`id`, `customers`.`name` FROM `orders` AS orders JOIN `customers` AS customers ON orders.customer_id = customers.id",
		},
		{
			name:     "no tables",
			spec:     core.SelectSpec{Columns: []string{"a"}},
			wantKind: core.KindInvalidInput,
		},
		{
			name:     "three tables",
			spec:     core.SelectSpec{Selection: core.Selection{Tables: []string{"a", "b", "c"}}, Columns: []string{"x"}},
			wantKind: core.KindUnsupportedTopology,
		},
		{
			name:     "no columns",
			spec:     core.SelectSpec{Selection: core.Selection{Tables: []string{"a"}}},
			wantKind: core.KindNoColumnsSelected,
		},
		{
			name:     "join without condition",
			spec:     core.SelectSpec{Selection: core.Selection{Tables: []string{"a", "b"}}, Columns: []string{"a.x"}},
			wantKind: core.KindInvalidInput,
		},
		{
			name:     "injected column",
			spec:     core.SelectSpec{Selection: core.Selection{Tables: []string{"a"}}, Columns: []string{"x` FROM secrets --"}},
			wantKind: core.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildSelect(tt.spec)
			if tt.want == "" {
				require.Error(t, err)
				require.Equal(t, tt.wantKind, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCreateTable(t *testing.T) {
	sc := schema.Schema{
		{Name: "id", Type: schema.TypeInt64},
		{Name: "flag", Type: schema.TypeBool, Nullable: true},
		{Name: "at", Type: schema.TypeTimestamp},
	}
	got, err := buildCreateTable("events", sc)
	require.NoError(t, err)
	require.Equal(t,
		"CREATE TABLE IF NOT EXISTS `events` (`id` Int64, `flag` Nullable(UInt8), `at` DateTime) ENGINE = MergeTree() ORDER BY tuple()",
		got)

	_, err = buildCreateTable("events", schema.Schema{{Name: "bad name"}})
	require.Equal(t, core.KindInvalidInput, core.KindOf(err))
}

func TestBuildInsert(t *testing.T) {
	got, err := buildInsert("t", schema.Schema{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO `t` (`a`, `b`) VALUES (?, ?)", got)
}
