package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MulvadT/swim-adsb/internal/airtraffic"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func i64Ptr(i int64) *int64     { return &i }

func TestRecordBatchAndReadBack(t *testing.T) {
	db := openTestDB(t)

	records := []airtraffic.FlightRecord{
		{
			ICAO24:      strPtr("abc123"),
			Lat:         f64Ptr(10),
			Lng:         f64Ptr(20),
			From:        "EDDF",
			To:          "Unknown airport",
			LastContact: i64Ptr(1000),
		},
		{
			ICAO24: strPtr("def456"),
			From:   "Unknown airport",
			To:     "EBBR",
		},
	}
	require.NoError(t, db.RecordBatch("departures.frankfurt", records, time.Unix(2000, 0)))

	n, err := db.CountByTopic("departures.frankfurt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.CountByTopic("arrivals.frankfurt")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := db.RecentByTopic("departures.frankfurt", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "def456", *got[0].ICAO24)
	assert.Nil(t, got[0].Lat)
	assert.Nil(t, got[0].LastContact)

	assert.Equal(t, "abc123", *got[1].ICAO24)
	require.NotNil(t, got[1].Lat)
	assert.Equal(t, 10.0, *got[1].Lat)
	assert.Equal(t, int64(1000), *got[1].LastContact)
}

func TestRecordBatchEmptyIsNoop(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordBatch("arrivals.brussels", nil, time.Now()))

	n, err := db.CountByTopic("arrivals.brussels")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecentByTopicLimit(t *testing.T) {
	db := openTestDB(t)

	var records []airtraffic.FlightRecord
	for _, id := range []string{"a1", "a2", "a3"} {
		records = append(records, airtraffic.FlightRecord{
			ICAO24: strPtr(id), From: "EBBR", To: "EHAM",
		})
	}
	require.NoError(t, db.RecordBatch("arrivals.amsterdam", records, time.Now()))

	got, err := db.RecentByTopic("arrivals.amsterdam", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a3", *got[0].ICAO24)
	assert.Equal(t, "a2", *got[1].ICAO24)
}
