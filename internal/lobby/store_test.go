// internal/lobby/store_test.go
package lobby

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

func testUser(name string) models.User {
	return models.User{ID: uuid.New(), Username: name}
}

// newTestStore returns a store with a controllable clock.
func newTestStore() (*Store, *time.Time) {
	s := NewStore()
	current := time.Now()
	s.now = func() time.Time { return current }
	return s, &current
}

func TestCreateInitializesLobby(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	routeID := uuid.New()

	snap, err := s.Create(host, routeID, 0)
	require.NoError(t, err)

	assert.Equal(t, models.LobbyWaiting, snap.Status)
	assert.Equal(t, routeID, snap.RouteID)
	assert.Equal(t, host.ID, snap.HostID)
	assert.Len(t, snap.JoinCode, CodeLength)
	assert.Equal(t, DefaultMaxParticipants, snap.MaxParticipants)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, host.ID, snap.Participants[0].UserID)

	// Neutral host state.
	assert.Nil(t, snap.HostState.Position)
	assert.Zero(t, snap.HostState.Progress)
	assert.Zero(t, snap.HostState.TotalCoins)
	assert.False(t, snap.HostState.Audio.IsPlaying)
	assert.Zero(t, snap.HostState.Audio.TrackIndex)
	assert.Equal(t, snap.CreatedAt.Add(SessionTTL), snap.ExpiresAt)
}

func TestCreateRejectsSecondLobbyPerHost(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")

	first, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)

	_, err = s.Create(host, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrAlreadyHosting)

	// Disbanding frees the host slot.
	disbanded, err := s.Leave(first.ID, host.ID)
	require.NoError(t, err)
	require.True(t, disbanded)

	_, err = s.Create(host, uuid.New(), 0)
	assert.NoError(t, err)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	routeID := uuid.New()

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(host, routeID, 0)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyHosting)
		}
	}
	assert.Equal(t, 1, created, "exactly one concurrent create must win")
}

func TestAdmitIsIdempotent(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	guest := testUser("bob")

	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)

	joined, err := s.Admit(snap.JoinCode, guest)
	require.NoError(t, err)
	assert.Len(t, joined.Participants, 2)

	again, err := s.Admit(snap.JoinCode, guest)
	require.NoError(t, err)
	assert.Len(t, again.Participants, 2, "re-admission must not duplicate the participant")
}

func TestAdmitNormalizesCode(t *testing.T) {
	s, _ := newTestStore()
	snap, err := s.Create(testUser("alice"), uuid.New(), 0)
	require.NoError(t, err)

	lower := make([]byte, len(snap.JoinCode))
	for i := range snap.JoinCode {
		lower[i] = snap.JoinCode[i] | 0x20
	}
	_, err = s.Admit(string(lower), testUser("bob"))
	assert.NoError(t, err)
}

func TestAdmitFullLobby(t *testing.T) {
	s, _ := newTestStore()
	snap, err := s.Create(testUser("alice"), uuid.New(), 0)
	require.NoError(t, err)

	// Host occupies the first slot; four more fill it to capacity 5.
	for i := 0; i < 4; i++ {
		_, err := s.Admit(snap.JoinCode, testUser("guest"))
		require.NoError(t, err)
	}

	_, err = s.Admit(snap.JoinCode, testUser("late"))
	assert.ErrorIs(t, err, ErrFull)
}

func TestAdmitOnlyMatchesWaitingLobbies(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)

	_, err = s.Start(snap.ID, host.ID)
	require.NoError(t, err)

	// Correct code, but the lobby is active now.
	_, err = s.Admit(snap.JoinCode, testUser("bob"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FinishCompletion(snap.ID)
	require.NoError(t, err)
	_, err = s.Admit(snap.JoinCode, testUser("bob"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchMergesPartially(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Start(snap.ID, host.ID)
	require.NoError(t, err)

	pos := models.Position{Lat: 52.52, Lng: 13.405}
	_, err = s.PatchHostState(snap.ID, host.ID, &models.HostStatePatch{Position: &pos})
	require.NoError(t, err)

	// A later audio-only patch must leave the position untouched.
	after, err := s.PatchHostState(snap.ID, host.ID, &models.HostStatePatch{
		Audio: &models.AudioUpdate{IsPlaying: true, TrackIndex: 2, CurrentTime: 14.5},
	})
	require.NoError(t, err)

	require.NotNil(t, after.HostState.Position)
	assert.Equal(t, pos, *after.HostState.Position)
	assert.True(t, after.HostState.Audio.IsPlaying)
	assert.Equal(t, 2, after.HostState.Audio.TrackIndex)
	assert.Equal(t, 14.5, after.HostState.Audio.CurrentTime)
	assert.False(t, after.HostState.Audio.UpdatedAt.IsZero())
}

func TestPatchClampsProgress(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Start(snap.ID, host.ID)
	require.NoError(t, err)

	under := -0.5
	after, err := s.PatchHostState(snap.ID, host.ID, &models.HostStatePatch{Progress: &under})
	require.NoError(t, err)
	assert.Equal(t, 0.0, after.HostState.Progress)

	over := 1.7
	after, err = s.PatchHostState(snap.ID, host.ID, &models.HostStatePatch{Progress: &over})
	require.NoError(t, err)
	assert.Equal(t, 1.0, after.HostState.Progress)
}

func TestPatchAuthorization(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	guest := testUser("bob")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Admit(snap.JoinCode, guest)
	require.NoError(t, err)

	progress := 0.5
	patch := &models.HostStatePatch{Progress: &progress}

	// Not active yet: reads as not found even for the host.
	_, err = s.PatchHostState(snap.ID, host.ID, patch)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Start(snap.ID, host.ID)
	require.NoError(t, err)

	_, err = s.PatchHostState(snap.ID, guest.ID, patch)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSnapshotAccessControl(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)

	_, err = s.Snapshot(snap.ID, host.ID)
	assert.NoError(t, err)

	_, err = s.Snapshot(snap.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Snapshot(uuid.New(), host.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHostLeaveDisbands(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	guest := testUser("bob")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Admit(snap.JoinCode, guest)
	require.NoError(t, err)

	disbanded, err := s.Leave(snap.ID, host.ID)
	require.NoError(t, err)
	assert.True(t, disbanded)

	// The remaining participant's next read fails: the session is gone.
	_, err = s.Snapshot(snap.ID, guest.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Leave(snap.ID, guest.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNonHostLeaveKeepsLobbyOpen(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	guest := testUser("bob")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Admit(snap.JoinCode, guest)
	require.NoError(t, err)

	disbanded, err := s.Leave(snap.ID, guest.ID)
	require.NoError(t, err)
	assert.False(t, disbanded)

	after, err := s.Snapshot(snap.ID, host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyWaiting, after.Status)
	assert.Len(t, after.Participants, 1)
}

func TestHostOfflineDerivation(t *testing.T) {
	s, clock := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Start(snap.ID, host.ID)
	require.NoError(t, err)

	// Exactly at the threshold the host still counts as online.
	*clock = clock.Add(HostOfflineAfter)
	view, err := s.Snapshot(snap.ID, host.ID)
	require.NoError(t, err)
	assert.False(t, view.HostOffline)

	*clock = clock.Add(time.Second)
	view, err = s.Snapshot(snap.ID, host.ID)
	require.NoError(t, err)
	assert.True(t, view.HostOffline)

	// A fresh push brings the host back online.
	progress := 0.3
	_, err = s.PatchHostState(snap.ID, host.ID, &models.HostStatePatch{Progress: &progress})
	require.NoError(t, err)
	view, err = s.Snapshot(snap.ID, host.ID)
	require.NoError(t, err)
	assert.False(t, view.HostOffline)
}

func TestExpiryEnforcedAtRead(t *testing.T) {
	s, clock := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)

	*clock = clock.Add(SessionTTL + time.Minute)

	_, err = s.Snapshot(snap.ID, host.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Admit(snap.JoinCode, testUser("bob"))
	assert.ErrorIs(t, err, ErrNotFound)

	// Expiry frees the host slot, so the host can open a new session.
	_, err = s.Create(host, uuid.New(), 0)
	assert.NoError(t, err)
}

func TestForceClose(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Start(snap.ID, host.ID)
	require.NoError(t, err)

	closed, err := s.ForceClose(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = s.ForceClose(snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Snapshot(snap.ID, host.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartTransitions(t *testing.T) {
	s, _ := newTestStore()
	host := testUser("alice")
	guest := testUser("bob")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Admit(snap.JoinCode, guest)
	require.NoError(t, err)

	_, err = s.Start(snap.ID, guest.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	started, err := s.Start(snap.ID, host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyActive, started.Status)

	_, err = s.Start(snap.ID, host.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSweepReapsOldTerminalLobbies(t *testing.T) {
	s, clock := newTestStore()
	host := testUser("alice")
	snap, err := s.Create(host, uuid.New(), 0)
	require.NoError(t, err)
	_, err = s.Leave(snap.ID, host.ID)
	require.NoError(t, err)

	*clock = clock.Add(terminalRetention + time.Minute)
	s.sweep()

	s.mu.Lock()
	_, exists := s.lobbies[snap.ID]
	s.mu.Unlock()
	assert.False(t, exists, "terminal lobby should be reaped after retention")
}
