package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestType(t *testing.T) {
	got, err := ParseTestType("blink_detection")
	require.NoError(t, err)
	assert.Equal(t, TestBlinkDetection, got)

	_, err = ParseTestType("retina_scan")
	require.Error(t, err)
}

func TestConfigFallbacks(t *testing.T) {
	cfg := StandardConfig()

	assert.Equal(t, 0.70, cfg.Threshold(TestBlinkDetection))
	assert.Equal(t, DefaultTestThreshold, cfg.Threshold(TestEyeTracking))

	assert.Equal(t, 5*time.Second, cfg.Timeout(TestHeadMovement))
	assert.Equal(t, DefaultTestTimeout, cfg.Timeout(TestReflectionAnalysis))
}

func TestProfiles(t *testing.T) {
	std := StandardConfig()
	assert.Equal(t, 5, std.RequiredFrames)
	assert.Equal(t, 0.6, std.MinQuality)
	assert.Len(t, std.Tests, 5)
	assert.True(t, std.FormatSupported("jpeg"))
	assert.False(t, std.FormatSupported("tiff"))
	assert.False(t, std.FormatSupported(""))

	high := HighSecurityConfig()
	assert.Equal(t, 10, high.RequiredFrames)
	assert.Equal(t, 0.8, high.MinQuality)
	assert.True(t, high.FormatSupported("tiff"))
	assert.Contains(t, high.Tests, TestInfraredDetection)
	assert.Contains(t, high.Tests, TestDepthAnalysis)
	assert.Equal(t, 0.90, high.Threshold(TestInfraredDetection))
}

func TestSessionTransitions(t *testing.T) {
	s := NewSession("s-1", time.Now())
	require.Equal(t, SessionCreated, s.State)

	require.NoError(t, s.Advance(SessionValidating))
	require.NoError(t, s.Advance(SessionRunning))
	require.NoError(t, s.Advance(SessionAggregating))
	require.NoError(t, s.Advance(SessionDone))

	// Done is terminal.
	require.Error(t, s.Advance(SessionRunning))
}

func TestSessionAbortsToDone(t *testing.T) {
	s := NewSession("s-2", time.Now())
	require.NoError(t, s.Advance(SessionValidating))
	require.NoError(t, s.Advance(SessionDone))
}

func TestSessionRejectsSkippedStage(t *testing.T) {
	s := NewSession("s-3", time.Now())
	require.Error(t, s.Advance(SessionRunning))
}
