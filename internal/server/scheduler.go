package server

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// The round driver is one goroutine per started round. It owns the
// pre-countdown ticks and the active-phase deadline countdown, and it always
// re-fetches the room by code under the store lock before acting: a stale
// generation or an unexpected phase means the round was superseded or the
// room destroyed, and the driver exits without touching anything.

func (s *Server) startGame(code, requesterID string, duration time.Duration) error {
	var (
		gen    int
		prompt Prompt
	)
	room, err := s.store.UpdateRoom(code, func(r *Room) error {
		if r.HostID != requesterID {
			return ErrUnauthorized
		}
		if r.Phase != phaseLobby && r.Phase != phaseResults {
			return ErrUnauthorized
		}
		r.Generation++
		gen = r.Generation
		prompt = s.prompts.Pick()
		r.Prompt = prompt
		r.Submissions = nil
		r.RoundDeadline = time.Time{}
		r.Phase = phasePreCountdown
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("room_code", code).Int("generation", gen).
		Str("prompt_id", prompt.ID).Dur("duration", duration).Msg("round starting")
	s.persistRoundStarted(room, gen, prompt)
	cancel := s.replaceRoundDriver(code)
	go s.runRound(code, gen, prompt, duration, cancel)
	return nil
}

// nextRound resets submissions and re-enters the countdown with a fresh
// prompt. Unlike startGame it is not host-gated; it only fails when the room
// is gone.
func (s *Server) nextRound(code string, duration time.Duration) error {
	var (
		gen    int
		prompt Prompt
	)
	room, err := s.store.UpdateRoom(code, func(r *Room) error {
		r.Generation++
		gen = r.Generation
		prompt = s.prompts.Pick()
		r.Prompt = prompt
		r.Submissions = nil
		r.RoundDeadline = time.Time{}
		r.Phase = phasePreCountdown
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("room_code", code).Int("generation", gen).
		Str("prompt_id", prompt.ID).Msg("next round starting")
	s.persistRoundStarted(room, gen, prompt)
	cancel := s.replaceRoundDriver(code)
	go s.runRound(code, gen, prompt, duration, cancel)
	return nil
}

func (s *Server) runRound(code string, gen int, prompt Prompt, duration time.Duration, cancel <-chan struct{}) {
	seconds := int(duration / time.Second)

	for count := s.cfg.PreCountdownSeconds; count >= 0; count-- {
		if !s.roundCurrent(code, gen) {
			return
		}
		s.ws.Broadcast(code, wsEvent{Event: "round:precountdown", Data: preCountdownPayload{
			Count:    count,
			Prompt:   prompt.Text,
			Category: prompt.Category,
			PromptID: prompt.ID,
			Duration: seconds,
		}})
		if count == 0 {
			break
		}
		if !s.sleep(cancel, time.Second) {
			return
		}
	}

	deadline := s.clock.Now().Add(duration)
	if _, err := s.store.UpdateRoom(code, func(r *Room) error {
		if r.Generation != gen || r.Phase != phasePreCountdown {
			return errStaleRound
		}
		r.Phase = phaseActive
		r.RoundDeadline = deadline
		return nil
	}); err != nil {
		return
	}
	s.ws.Broadcast(code, wsEvent{Event: "round:start", Data: roundStartPayload{
		Duration: seconds,
		Prompt:   prompt.Text,
		PromptID: prompt.ID,
		Category: prompt.Category,
	}})
	s.log.Debug().Str("room_code", code).Int("generation", gen).Msg("round active")

	for {
		if !s.sleep(cancel, time.Second) {
			return
		}
		var (
			remaining time.Duration
			stale     bool
		)
		if _, err := s.store.UpdateRoom(code, func(r *Room) error {
			if r.Generation != gen || r.Phase != phaseActive {
				stale = true
				return nil
			}
			remaining = r.RoundDeadline.Sub(s.clock.Now())
			return nil
		}); err != nil || stale {
			return
		}
		if remaining > 0 {
			s.ws.Broadcast(code, wsEvent{Event: "round:countdown", Data: countdownPayload{
				TimeLeft: int((remaining + time.Second - 1) / time.Second),
			}})
			continue
		}
		// Deadline expired: judge whatever was received, even nothing.
		s.triggerJudging(code, gen, "deadline")
		return
	}
}

func (s *Server) roundCurrent(code string, gen int) bool {
	current := false
	_, _ = s.store.UpdateRoom(code, func(r *Room) error {
		current = r.Generation == gen
		return nil
	})
	return current
}

// sleep waits d on the server clock, returning false when the driver was
// cancelled first.
func (s *Server) sleep(cancel <-chan struct{}, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	select {
	case <-timer.Chan():
		return true
	case <-cancel:
		stopAndDrainTimer(timer)
		return false
	}
}

// replaceRoundDriver cancels any running driver for the room and registers a
// fresh cancel channel for the next one.
func (s *Server) replaceRoundDriver(code string) chan struct{} {
	s.driversMu.Lock()
	defer s.driversMu.Unlock()
	if existing, ok := s.drivers[code]; ok {
		close(existing)
	}
	cancel := make(chan struct{})
	s.drivers[code] = cancel
	return cancel
}

// cancelRoundDriver stops the room's driver. Called on room destruction and
// when judging starts early, so no timer callback can fire against a deleted
// room or an already-judging round.
func (s *Server) cancelRoundDriver(code string) {
	s.driversMu.Lock()
	defer s.driversMu.Unlock()
	if existing, ok := s.drivers[code]; ok {
		close(existing)
		delete(s.drivers, code)
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
