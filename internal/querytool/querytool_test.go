package querytool

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Allows(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"SELECT 1;", "SELECT 1"},
		{"  select * from clientes  ", "select * from clientes"},
		{"-- top customers\nSELECT name FROM c", "SELECT name FROM c"},
		{"/* hint */ WITH t AS (SELECT 1) SELECT * FROM t", "WITH t AS (SELECT 1) SELECT * FROM t"},
		{"EXPLAIN SELECT 1", "EXPLAIN SELECT 1"},
		{"SHOW TABLES", "SHOW TABLES"},
		{"SELECT updated_at, created_by FROM logs", "SELECT updated_at, created_by FROM logs"},
		{"SELECT name FROM system.tables", "SELECT name FROM system.tables"},
		{"SELECT * FROM jobs WHERE status = 'update pending'", "SELECT * FROM jobs WHERE status = 'update pending'"},
		{"SELECT * FROM t WHERE x = ';';", "SELECT * FROM t WHERE x = ';'"},
		{`SELECT "delete" FROM t WHERE note = 'it''s done'`, `SELECT "delete" FROM t WHERE note = 'it''s done'`},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	for _, q := range []string{
		"",
		"   ;  ",
		"-- only a comment",
		"DELETE FROM clientes",
		"SELECT 1; DROP TABLE clientes",
		"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x",
		"INSERT INTO t VALUES (1)",
		"(SELECT 1)",
		"TRUNCATE t",
		"SELECT 'a'; DROP TABLE t",
		"SELECT 'unterminated",
	} {
		_, err := Normalize(q)
		assert.ErrorIs(t, err, ErrNotReadOnly, q)
	}
}

type fakeRunner struct {
	got  string
	rows *Rows
	err  error
}

func (f *fakeRunner) Query(ctx context.Context, q string) (*Rows, error) {
	f.got = q
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	return f.rows, f.err
}

func (f *fakeRunner) Close() error { return nil }

func TestExecute(t *testing.T) {
	r := &fakeRunner{rows: &Rows{Columns: []string{"n"}, Rows: []map[string]any{{"n": int64(3)}}}}
	out := Execute(context.Background(), r, "SELECT COUNT(*) AS n FROM clientes;")
	assert.Empty(t, out.Error)
	require.NotNil(t, out.Rows)
	assert.Equal(t, int64(3), out.Rows.Rows[0]["n"])
	assert.Equal(t, "SELECT COUNT(*) AS n FROM clientes", r.got)

	out = Execute(context.Background(), r, "DROP TABLE clientes")
	assert.Nil(t, out.Rows)
	assert.Contains(t, out.Error, "read-only")

	out = Execute(context.Background(), &fakeRunner{err: errors.New("relation \"x\" does not exist")}, "SELECT * FROM x")
	assert.Equal(t, "relation \"x\" does not exist", out.Error)

	out = Execute(context.Background(), nil, "SELECT 1")
	assert.Equal(t, "query tool is not configured", out.Error)
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "", logrus.New())
	assert.Error(t, err)
}

func TestPostgresRunner_Integration(t *testing.T) {
	dsn := os.Getenv("QUERY_TOOL_TEST_DSN")
	if dsn == "" {
		t.Skip("QUERY_TOOL_TEST_DSN not set")
	}
	logger := logrus.New()
	r, err := OpenPostgres(context.Background(), dsn, logger)
	require.NoError(t, err)
	defer r.Close()

	out := Execute(context.Background(), r, "SELECT 1 AS one, 'a'::text AS letter")
	require.Empty(t, out.Error)
	require.Len(t, out.Rows.Rows, 1)
	assert.Equal(t, []string{"one", "letter"}, out.Rows.Columns)
	assert.Equal(t, "a", out.Rows.Rows[0]["letter"])

	out = Execute(context.Background(), r, "SELECT g FROM generate_series(1, 1005) AS g")
	require.Empty(t, out.Error)
	assert.Len(t, out.Rows.Rows, constants.MaxQueryToolRows)
	assert.True(t, out.Rows.Truncated)

	out = Execute(context.Background(), r, "SELECT 'x' AS v FROM pg_class WHERE relname = 'update pending'")
	assert.Empty(t, out.Error)
	assert.False(t, out.Rows.Truncated)
}
