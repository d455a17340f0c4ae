package storage

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialect(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"", "sqlite", false},
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"Postgres", "postgres", false},
		{"postgresql", "postgres", false},
		{"mysql", "mysql", false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := NewDialect(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM flashcards WHERE student_id = ? AND id = ? LIMIT ?`

	pg, _ := NewDialect("postgres")
	assert.Equal(t, `SELECT * FROM flashcards WHERE student_id = $1 AND id = $2 LIMIT $3`, pg.Rebind(q))

	my, _ := NewDialect("mysql")
	assert.Equal(t, q, my.Rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	d := sqliteDialect{}
	assert.Equal(t, "k.db?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", d.DSN("k.db"))
	assert.Equal(t, "file:k.db?mode=rwc&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", d.DSN("file:k.db?mode=rwc"))
	assert.Equal(t, "k.db?_pragma=foreign_keys(on)", d.DSN("k.db?_pragma=foreign_keys(on)"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, postgresDialect{}.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, postgresDialect{}.IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, mysqlDialect{}.IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, mysqlDialect{}.IsUniqueViolation(errors.New("boom")))
	assert.True(t, sqliteDialect{}.IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: flashcards.student_id, flashcards.id (1555)")))
}
