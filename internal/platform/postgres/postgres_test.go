package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "", Config{})
	require.Error(t, err)
}
