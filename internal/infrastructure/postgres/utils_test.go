package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("conexión cerrada")))
}

func TestResolveIPv4_Literal(t *testing.T) {
	ip, err := resolveIPv4("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip)

	_, err = resolveIPv4("::1")
	assert.Error(t, err)
}

func TestDatabaseURLWithIPv4(t *testing.T) {
	got := databaseURLWithIPv4("postgres://u:p@10.1.2.3/efinanceira?sslmode=disable")
	assert.Equal(t, "postgres://u:p@10.1.2.3:5432/efinanceira?sslmode=disable", got)

	// URL inválida: se devuelve tal cual.
	assert.Equal(t, "::no-url", databaseURLWithIPv4("::no-url"))
}
