// internal/lobby/sync.go
//
// Host/participant synchronization over the polling transport. The host is
// the single writer: it flushes its whole local snapshot on a fixed interval
// (last-write-wins, no merging). Participants pull and converge toward the
// host; they never write session state back, so there is no feedback loop.
package lobby

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

const (
	// PushInterval is how often the host flushes its snapshot.
	PushInterval = 3 * time.Second

	// PullInterval is how often participants re-read the lobby.
	PullInterval = 3 * time.Second

	// DriftTolerance is the audio drift, in seconds, beyond which a
	// participant hard-seeks to the host's expected position. Drift at
	// exactly the tolerance does not trigger a seek.
	DriftTolerance = 2.0
)

// ExpectedAudioPosition projects the host's playhead forward from its last
// flush. While paused the reported position is taken as-is.
func ExpectedAudioPosition(audio models.AudioState, now time.Time) float64 {
	if !audio.IsPlaying {
		return audio.CurrentTime
	}
	return audio.CurrentTime + now.Sub(audio.UpdatedAt).Seconds()
}

// AudioDrift is the absolute difference between the host's expected playhead
// and a participant's local playhead.
func AudioDrift(audio models.AudioState, localPos float64, now time.Time) float64 {
	return math.Abs(ExpectedAudioPosition(audio, now) - localPos)
}

// Player is the participant-side playback surface the reconciler drives.
type Player interface {
	Playing() bool
	Position() float64
	Track() int
	Play()
	Pause()
	Seek(pos float64)
	SetTrack(index int)
}

// Reconciler converges local playback toward the host's audio state on each
// pull. Correction is one-sided: the host is truth.
type Reconciler struct {
	player Player
}

func NewReconciler(p Player) *Reconciler {
	return &Reconciler{player: p}
}

// Reconcile applies one pull's worth of correction: switch tracks if the
// host moved on, match play/pause, then hard-seek if drift exceeds the
// tolerance. Gradual correction is deliberately not attempted.
func (r *Reconciler) Reconcile(audio models.AudioState, now time.Time) {
	if r.player.Track() != audio.TrackIndex {
		r.player.SetTrack(audio.TrackIndex)
		r.player.Seek(ExpectedAudioPosition(audio, now))
	}

	if audio.IsPlaying && !r.player.Playing() {
		r.player.Play()
	} else if !audio.IsPlaying && r.player.Playing() {
		r.player.Pause()
	}

	if !audio.IsPlaying {
		return
	}
	expected := ExpectedAudioPosition(audio, now)
	if math.Abs(expected-r.player.Position()) > DriftTolerance {
		r.player.Seek(expected)
	}
}

// PatchFunc delivers one host snapshot to the store, typically a closure
// over the PATCH host-state call.
type PatchFunc func(ctx context.Context, patch *models.HostStatePatch) error

// HostPusher owns the host's local snapshot and flushes it on a fixed tick.
// Every flush carries the entire snapshot: a missed tick is not an error,
// the next one re-synchronizes everything.
type HostPusher struct {
	mu          sync.Mutex
	position    *models.Position
	progress    float64
	checkpoints []string
	totalCoins  int
	audio       models.AudioUpdate

	flush    PatchFunc
	interval time.Duration
}

func NewHostPusher(flush PatchFunc) *HostPusher {
	return &HostPusher{flush: flush, interval: PushInterval}
}

func (hp *HostPusher) SetPosition(lat, lng float64) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.position = &models.Position{Lat: lat, Lng: lng}
}

func (hp *HostPusher) SetProgress(progress float64) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.progress = progress
}

// TriggerCheckpoint records a checkpoint the host passed. Duplicates are
// ignored.
func (hp *HostPusher) TriggerCheckpoint(id string) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	for _, c := range hp.checkpoints {
		if c == id {
			return
		}
	}
	hp.checkpoints = append(hp.checkpoints, id)
}

func (hp *HostPusher) SetTotalCoins(coins int) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.totalCoins = coins
}

func (hp *HostPusher) SetAudio(isPlaying bool, trackIndex int, currentTime float64) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.audio = models.AudioUpdate{
		IsPlaying:   isPlaying,
		TrackIndex:  trackIndex,
		CurrentTime: currentTime,
	}
}

// snapshotPatch builds a full-overwrite patch from the current local state.
func (hp *HostPusher) snapshotPatch() *models.HostStatePatch {
	hp.mu.Lock()
	defer hp.mu.Unlock()

	progress := hp.progress
	coins := hp.totalCoins
	audio := hp.audio
	patch := &models.HostStatePatch{
		Progress:               &progress,
		TriggeredCheckpointIDs: append([]string(nil), hp.checkpoints...),
		TotalCoins:             &coins,
		Audio:                  &audio,
	}
	if hp.position != nil {
		pos := *hp.position
		patch.Position = &pos
	}
	return patch
}

// Run flushes until ctx is done. Flush failures are logged and retried on
// the next tick.
func (hp *HostPusher) Run(ctx context.Context) {
	ticker := time.NewTicker(hp.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := hp.flush(ctx, hp.snapshotPatch()); err != nil {
				log.Printf("host state flush failed: %v", err)
			}
		}
	}
}
