package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithDefaultSSLMode(t *testing.T) {
	require.Equal(t,
		"postgres://u:p@host/db?sslmode=require",
		withDefaultSSLMode("postgres://u:p@host/db"))

	require.Equal(t,
		"postgresql://host/db?sslmode=require",
		withDefaultSSLMode("postgresql://host/db"))

	// an explicit choice wins, whatever it is
	require.Equal(t,
		"postgres://host/db?sslmode=disable",
		withDefaultSSLMode("postgres://host/db?sslmode=disable"))

	require.Equal(t,
		"host=h dbname=db sslmode=require",
		withDefaultSSLMode("host=h dbname=db"))

	require.Equal(t,
		"host=h sslmode=verify-full",
		withDefaultSSLMode("host=h sslmode=verify-full"))
}
