package server

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestStartGameHostOnly(t *testing.T) {
	s := newTestServer(t, clockwork.NewFakeClock(), "")
	room, _ := s.store.CreateRoomWithCode("TEST01", "host-1", "Host")
	if _, err := s.store.AddPlayer(room.Code, "p-1", "Riley", 0); err != nil {
		t.Fatalf("add player: %v", err)
	}

	if err := s.startGame(room.Code, "p-1", 30*time.Second); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-host, got %v", err)
	}
	if err := s.startGame("NOPE", "host-1", 30*time.Second); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestStartGameOnlyFromLobbyOrResults(t *testing.T) {
	s := newTestServer(t, clockwork.NewFakeClock(), "")
	room, _ := s.store.CreateRoomWithCode("TEST01", "host-1", "Host")

	for _, phase := range []string{phasePreCountdown, phaseActive, phaseJudging} {
		if _, err := s.store.UpdateRoom(room.Code, func(r *Room) error {
			r.Phase = phase
			return nil
		}); err != nil {
			t.Fatalf("set phase: %v", err)
		}
		if err := s.startGame(room.Code, "host-1", 30*time.Second); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("start from %s: expected ErrUnauthorized, got %v", phase, err)
		}
	}
}

func TestStartGameBumpsGenerationAndResetsRound(t *testing.T) {
	s := newTestServer(t, clockwork.NewFakeClock(), "")
	room, _ := s.store.CreateRoomWithCode("TEST01", "host-1", "Host")
	if _, err := s.store.UpdateRoom(room.Code, func(r *Room) error {
		r.Phase = phaseResults
		r.Generation = 3
		r.Submissions = []Submission{{PlayerID: "host-1"}}
		return nil
	}); err != nil {
		t.Fatalf("seed round state: %v", err)
	}

	if err := s.startGame(room.Code, "host-1", 30*time.Second); err != nil {
		t.Fatalf("start game: %v", err)
	}

	var (
		gen   int
		phase string
		subs  int
	)
	_, _ = s.store.UpdateRoom(room.Code, func(r *Room) error {
		gen, phase, subs = r.Generation, r.Phase, len(r.Submissions)
		if r.Prompt.Text == "" {
			t.Error("no prompt assigned")
		}
		return nil
	})
	if gen != 4 {
		t.Fatalf("generation = %d, want 4", gen)
	}
	if phase != phasePreCountdown {
		t.Fatalf("phase = %q, want precountdown", phase)
	}
	if subs != 0 {
		t.Fatalf("submissions not cleared: %d", subs)
	}
	s.cancelRoundDriver(room.Code)
}

func TestNextRoundSupersedesOldGeneration(t *testing.T) {
	s := newTestServer(t, clockwork.NewFakeClock(), "")
	room, _ := s.store.CreateRoomWithCode("TEST01", "host-1", "Host")
	if _, err := s.store.UpdateRoom(room.Code, func(r *Room) error {
		r.Phase = phaseResults
		r.Generation = 1
		return nil
	}); err != nil {
		t.Fatalf("seed round state: %v", err)
	}

	if err := s.nextRound(room.Code, 30*time.Second); err != nil {
		t.Fatalf("next round: %v", err)
	}

	// Anything still holding generation 1 must now be inert.
	if s.roundCurrent(room.Code, 1) {
		t.Fatal("old generation still reads as current")
	}
	if !s.roundCurrent(room.Code, 2) {
		t.Fatal("new generation should be current")
	}
	if s.triggerJudging(room.Code, 1, "deadline") {
		t.Fatal("stale deadline trigger must lose")
	}
	s.cancelRoundDriver(room.Code)
}

func TestReplaceRoundDriverCancelsPrevious(t *testing.T) {
	s := newTestServer(t, clockwork.NewFakeClock(), "")

	first := s.replaceRoundDriver("TEST01")
	second := s.replaceRoundDriver("TEST01")
	select {
	case <-first:
	default:
		t.Fatal("first driver cancel channel should be closed")
	}
	select {
	case <-second:
		t.Fatal("second driver cancel channel closed too early")
	default:
	}

	s.cancelRoundDriver("TEST01")
	select {
	case <-second:
	default:
		t.Fatal("cancelRoundDriver should close the registered channel")
	}
}

func TestSleepReturnsFalseOnCancel(t *testing.T) {
	s := newTestServer(t, clockwork.NewFakeClock(), "")
	cancel := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		done <- s.sleep(cancel, time.Minute)
	}()
	close(cancel)
	if slept := <-done; slept {
		t.Fatal("cancelled sleep should report false")
	}
}
