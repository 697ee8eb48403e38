package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/vandebron/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func bucket(market, ts string) *models.UsageBucket {
	return &models.UsageBucket{
		Market:             market,
		Time:               ts,
		Resolution:         "Hours",
		ConsumptionPeak:    1.5,
		ConsumptionOffPeak: 0.2,
	}
}

func TestInsertAndList(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 10:00:00")))
	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 11:00:00")))
	require.NoError(t, db.InsertBucket(bucket("Gas", "2024-03-10 10:00:00")))

	elec, err := db.ListBuckets("Electricity")
	require.NoError(t, err)
	require.Len(t, elec, 2)
	// newest first
	assert.Equal(t, "2024-03-10 11:00:00", elec[0].Time)

	all, err := db.ListBuckets("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInsertIgnoresDuplicates(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 10:00:00")))
	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 10:00:00")))

	all, err := db.ListBuckets("Electricity")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMarkets(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertBucket(bucket("Gas", "2024-03-10 10:00:00")))
	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 10:00:00")))

	markets, err := db.Markets()
	require.NoError(t, err)
	assert.Equal(t, []string{"Electricity", "Gas"}, markets)
}

func TestPublishedWorkflow(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 10:00:00")))
	require.NoError(t, db.InsertBucket(bucket("Electricity", "2024-03-10 11:00:00")))

	unpublished, err := db.ListUnpublishedBuckets("Electricity")
	require.NoError(t, err)
	require.Len(t, unpublished, 2)

	require.NoError(t, db.MarkPublished(unpublished[0].ID))

	unpublished, err = db.ListUnpublishedBuckets("Electricity")
	require.NoError(t, err)
	require.Len(t, unpublished, 1)

	// published rows still show up in a full listing
	all, err := db.ListBuckets("Electricity")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
