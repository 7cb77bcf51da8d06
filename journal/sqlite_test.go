package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteRoundTrip(t *testing.T) {
	j := newSQLite(t)

	tr := sampleTrade()
	require.NoError(t, j.RecordTrade(tr))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: tr.ExitTime, Cash: 99_948, Equity: 99_948,
	}))

	got, err := j.TradesClosedBetween(tr.ExitTime.Add(-time.Hour), tr.ExitTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tr.TradeID, got[0].TradeID)
	assert.Equal(t, tr.Instrument, got[0].Instrument)
	assert.Equal(t, tr.Quantity, got[0].Quantity)
	assert.Equal(t, tr.RealizedPL, got[0].RealizedPL)
	assert.Equal(t, tr.Reason, got[0].Reason)
	assert.True(t, got[0].ExitTime.Equal(tr.ExitTime))
}

func TestSQLiteTimeWindowFilters(t *testing.T) {
	j := newSQLite(t)

	base := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tr := sampleTrade()
		tr.TradeID = tr.TradeID[:25] + string(rune('A'+i))
		tr.ExitTime = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, j.RecordTrade(tr))
	}

	// Half-open window [base, base+2h) excludes the last trade.
	got, err := j.TradesClosedBetween(base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = j.TradesClosedBetween(base.Add(10*time.Hour), base.Add(11*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteDuplicateTradeIDRejected(t *testing.T) {
	j := newSQLite(t)

	tr := sampleTrade()
	require.NoError(t, j.RecordTrade(tr))
	assert.Error(t, j.RecordTrade(tr))
}
