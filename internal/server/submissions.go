package server

import (
	"context"
	"errors"
)

// submitDrawing appends a player's drawing for the active round. At most one
// submission per player per round; a duplicate is a logged no-op. Once every
// current player has submitted, judging triggers immediately, pre-empting the
// deadline.
func (s *Server) submitDrawing(code, playerID string, image []byte) error {
	var (
		gen      int
		complete bool
	)
	_, err := s.store.UpdateRoom(code, func(r *Room) error {
		if r.Phase != phaseActive {
			return ErrRoundNotActive
		}
		info, member := r.Players[playerID]
		if !member {
			return ErrUnauthorized
		}
		if r.hasSubmitted(playerID) {
			return ErrDuplicateSubmission
		}
		r.Submissions = append(r.Submissions, Submission{
			PlayerID:    playerID,
			Nickname:    info.Nickname,
			Image:       image,
			SubmittedAt: s.clock.Now(),
		})
		gen = r.Generation
		complete = len(r.Submissions) >= len(r.Players)
		return nil
	})
	if errors.Is(err, ErrDuplicateSubmission) {
		s.log.Debug().Str("room_code", code).Str("player_id", playerID).Msg("duplicate submission ignored")
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Debug().Str("room_code", code).Str("player_id", playerID).Bool("complete", complete).Msg("submission received")
	if complete {
		s.triggerJudging(code, gen, "all-submitted")
	}
	return nil
}

type judgeSnapshot struct {
	code        string
	generation  int
	prompt      Prompt
	submissions []Submission
}

// triggerJudging performs the Active -> Judging transition. The transition is
// the exactly-once guard: the all-submitted path, the deadline path and the
// manual trigger all funnel through here, and only the caller that observes
// phase Active with a matching generation proceeds. Everyone else is a no-op.
func (s *Server) triggerJudging(code string, gen int, reason string) bool {
	var snap judgeSnapshot
	_, err := s.store.UpdateRoom(code, func(r *Room) error {
		if r.Generation != gen || r.Phase != phaseActive {
			return errStaleRound
		}
		r.Phase = phaseJudging
		snap = judgeSnapshot{
			code:        code,
			generation:  gen,
			prompt:      r.Prompt,
			submissions: append([]Submission(nil), r.Submissions...),
		}
		return nil
	})
	if err != nil {
		s.log.Debug().Str("room_code", code).Int("generation", gen).Str("reason", reason).
			Msg("judging trigger lost the race")
		return false
	}
	// Early trigger: the pending deadline must not fire a second attempt.
	s.cancelRoundDriver(code)
	s.ws.Broadcast(code, wsEvent{Event: "round:ended", Data: struct{}{}})
	s.log.Info().Str("room_code", code).Int("generation", gen).Str("reason", reason).
		Int("submissions", len(snap.submissions)).Msg("judging started")
	go s.runJudging(snap)
	return true
}

// runJudging operates on the snapshot only, never on live room state, and
// never under the store lock. The result is applied back under the lock and
// discarded if the round has been superseded meanwhile.
func (s *Server) runJudging(snap judgeSnapshot) {
	var result RoundResult
	if len(snap.submissions) == 0 {
		result = RoundResult{
			Prompt:      snap.prompt.Text,
			WinnerIndex: -1,
			Scores:      []ScoreEntry{},
			IsFallback:  true,
			Error:       "no submissions received",
		}
	} else {
		result = s.judge.Judge(context.Background(), snap.prompt.Text, snap.submissions)
	}

	room, err := s.store.UpdateRoom(snap.code, func(r *Room) error {
		if r.Generation != snap.generation || r.Phase != phaseJudging {
			return errStaleRound
		}
		r.Phase = phaseResults
		return nil
	})
	if err != nil {
		s.log.Warn().Str("room_code", snap.code).Int("generation", snap.generation).
			Msg("discarding judging result for superseded round")
		return
	}
	s.ws.Broadcast(snap.code, wsEvent{Event: "round-result", Data: result})
	s.log.Info().Str("room_code", snap.code).Int("generation", snap.generation).
		Str("winner_id", result.WinnerID).Bool("is_fallback", result.IsFallback).Msg("round result broadcast")
	s.persistRoundResult(room, snap.generation, result)
}

// judgeRound is the manual, host-only trigger. It reuses the same CAS path,
// so it can never double-judge a round.
func (s *Server) judgeRound(code, requesterID string) error {
	var gen int
	_, err := s.store.UpdateRoom(code, func(r *Room) error {
		if r.HostID != requesterID {
			return ErrUnauthorized
		}
		if r.Phase != phaseActive {
			return ErrRoundNotActive
		}
		gen = r.Generation
		return nil
	})
	if err != nil {
		return err
	}
	s.triggerJudging(code, gen, "manual")
	return nil
}
