package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron_RejectsWrongFieldCount(t *testing.T) {
	_, err := parseCron("* * *")
	require.Error(t, err)
}

func TestParseCron_RejectsOutOfRangeValue(t *testing.T) {
	_, err := parseCron("60 * * * *")
	require.Error(t, err)
}

func TestCronExpr_Next_EveryFiveMinutes(t *testing.T) {
	expr, err := parseCron("*/5 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 1, 1, 10, 2, 30, 0, time.UTC)
	next := expr.next(after)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC), next)
}

func TestCronExpr_Next_DailyAtNine(t *testing.T) {
	expr, err := parseCron("0 9 * * *")
	require.NoError(t, err)

	after := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	next := expr.next(after)
	assert.Equal(t, time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC), next)
}

func TestCronExpr_Next_Hourly(t *testing.T) {
	expr, err := parseCron("0 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	next := expr.next(after)
	assert.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), next)
}
