package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Increment(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	output := buf.String()
	assert.Contains(t, output, "100/100 recipes")
	assert.Contains(t, output, "100.0%")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Update(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish should set to total")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should end the line")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0")
	assert.Contains(t, buf.String(), "0.0%")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(150)

	assert.Contains(t, buf.String(), "100/100")
	assert.NotContains(t, buf.String(), "150/100")
}

func TestProgressTracker_ReportsRate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)

	tracker.Start()
	time.Sleep(10 * time.Millisecond)
	tracker.Update(100)
	tracker.Finish()

	assert.Contains(t, buf.String(), "recipes/s")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Increment(10)
	tracker.Update(20)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)
	tracker.Start()

	tracker.Update(50)
	assert.Empty(t, buf.String(), "should not print under interval")

	tracker.Update(100)
	assert.NotEmpty(t, buf.String(), "should print at interval")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "interval counts from the last report")

	tracker.Update(250)
	assert.NotEmpty(t, buf.String())
}

func TestProgressTracker_NonPositiveIntervalReportsEveryUpdate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 3, 0)
	tracker.Start()

	tracker.Increment(1)
	tracker.Increment(1)

	assert.Equal(t, 2, strings.Count(buf.String(), "\r"))
}
