package handoff

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webbmaffian/go-sigroute/config"
)

func waitParked(t *testing.T, h *Handoff) {
	t.Helper()
	require.Eventually(t, h.Parked, 5*time.Second, time.Millisecond)
}

func TestInitialState(t *testing.T) {
	require.Equal(t, Internal, New(config.ModeVoice).State())
	require.Equal(t, Internal, New(config.ModeLoopback).State())
	require.Equal(t, External, New(config.ModeExternalDSP).State())
}

func TestReleaseAndReclaim(t *testing.T) {
	h := New(config.ModeVoice)
	done := make(chan error, 1)

	go func() {
		done <- h.RequestReleaseToExternal()
	}()

	waitParked(t, h)
	require.Equal(t, External, h.State())

	select {
	case <-done:
		t.Fatal("released before reclaim")
	default:
	}

	h.ReclaimInternal()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("not released by reclaim")
	}

	require.Equal(t, Internal, h.State())
	require.False(t, h.Parked())
}

func TestCheckpoint(t *testing.T) {
	h := New(config.ModeVoice)
	require.NoError(t, h.Checkpoint())

	h.Suspend()

	done := make(chan error, 1)

	go func() {
		done <- h.Checkpoint()
	}()

	waitParked(t, h)
	h.ReclaimInternal()
	require.NoError(t, <-done)
}

func TestCheckpointStartsParkedInExternalMode(t *testing.T) {
	h := New(config.ModeExternalDSP)
	done := make(chan error, 1)

	go func() {
		done <- h.Checkpoint()
	}()

	waitParked(t, h)
	h.ReclaimInternal()
	require.NoError(t, <-done)
	require.Equal(t, Internal, h.State())
}

func TestCloseReleasesParked(t *testing.T) {
	h := New(config.ModeExternalDSP)
	done := make(chan error, 1)

	go func() {
		done <- h.Checkpoint()
	}()

	waitParked(t, h)
	h.Close()
	require.ErrorIs(t, <-done, ErrClosed)
	require.ErrorIs(t, h.RequestReleaseToExternal(), ErrClosed)
}

func TestErrClosedWraps(t *testing.T) {
	err := fmt.Errorf("dsp: %w", ErrClosed)
	require.ErrorIs(t, err, ErrClosed)
	require.EqualError(t, err, "dsp: handoff is closed")
}
