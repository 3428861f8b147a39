package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	cases := []struct {
		in   string
		want Dialect
		ok   bool
	}{
		{"sqlite", DialectSQLite, true},
		{"sqlite3", DialectSQLite, true},
		{"postgres", DialectPostgres, true},
		{"postgresql", DialectPostgres, true},
		{"pg", DialectPostgres, true},
		{"mysql", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDialect(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", NewSQLite().Placeholder(3))
	assert.Equal(t, "$3", NewPostgres().Placeholder(3))
}

func TestNew_UnsupportedDialect(t *testing.T) {
	_, err := New(Dialect("mysql"))
	assert.Error(t, err)
}
