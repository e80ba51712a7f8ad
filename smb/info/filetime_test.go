package info

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileTimeZeroMapsToZeroTime(t *testing.T) {
	assert.True(t, FileTime(0).Time().IsZero())
	assert.Equal(t, FileTime(0), FileTimeFromTime(time.Time{}))
}

func TestFileTimeRoundTrip(t *testing.T) {
	want := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	ft := FileTimeFromTime(want)
	got := ft.Time()
	assert.True(t, want.Equal(got), "want %v got %v", want, got)
}

func TestFileTimeEpoch(t *testing.T) {
	epoch := time.Unix(0, 0).UTC()
	ft := FileTimeFromTime(epoch)
	assert.Equal(t, FileTime(windowsEpochOffset), ft)
	assert.True(t, epoch.Equal(ft.Time()))
}
