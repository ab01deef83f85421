package score

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRecordCreatesOnceAndReusesAfter(t *testing.T) {
	clk := clock.NewMock()
	dr := NewDeliveryRecords(clk, time.Minute)

	rec1 := dr.EnsureRecord([]byte("m1"))
	require.Equal(t, StatusUnknown, rec1.Status)
	assert.Equal(t, clk.Now(), rec1.FirstSeen)

	rec1.Status = StatusValid
	rec2 := dr.EnsureRecord([]byte("m1"))
	assert.Same(t, rec1, rec2)
	assert.Equal(t, StatusValid, rec2.Status)
}

func TestDeliveryRecordsGCEvictsOnlyExpired(t *testing.T) {
	clk := clock.NewMock()
	dr := NewDeliveryRecords(clk, 10*time.Millisecond)

	dr.EnsureRecord([]byte("old"))
	clk.Add(5 * time.Millisecond)
	dr.EnsureRecord([]byte("new"))

	clk.Add(6 * time.Millisecond) // old expires at +10ms, now at +11ms
	dr.GC()

	_, oldStillFresh := dr.records["old"]
	assert.False(t, oldStillFresh)
	_, newStillFresh := dr.records["new"]
	assert.True(t, newStillFresh)
}

func TestDeliveryRecordsClear(t *testing.T) {
	clk := clock.NewMock()
	dr := NewDeliveryRecords(clk, time.Minute)
	dr.EnsureRecord([]byte("m1"))
	dr.Clear()
	assert.Empty(t, dr.records)
	assert.Nil(t, dr.order.Front())
}
