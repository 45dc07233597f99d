package server

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/voltway/distctl/internal/models"
)

// DefaultSweepSchedule runs housekeeping every five minutes
const DefaultSweepSchedule = "*/5 * * * *"

// Standard 5-field format: minute hour day-of-month month day-of-week
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SweepResult counts the rows removed by one sweep
type SweepResult struct {
	Challenges    int64
	RevokedTokens int64
}

// Sweep deletes expired passcode challenges, and revocations of tokens that
// have expired on their own and can no longer be presented.
func (s *Server) Sweep() (SweepResult, error) {
	now := s.now()
	var result SweepResult

	res := s.db.Where("expires_at <= ?", now).Delete(&models.Challenge{})
	if res.Error != nil {
		return result, fmt.Errorf("failed to delete expired challenges: %w", res.Error)
	}
	result.Challenges = res.RowsAffected

	res = s.db.Where("expires_at <= ?", now).Delete(&models.RevokedToken{})
	if res.Error != nil {
		return result, fmt.Errorf("failed to delete stale revocations: %w", res.Error)
	}
	result.RevokedTokens = res.RowsAffected

	return result, nil
}

// StartSweeper runs Sweep on the configured schedule until the returned stop
// function is called. Stop waits for a running sweep to finish.
func (s *Server) StartSweeper() (func(), error) {
	c := cron.New(cron.WithParser(scheduleParser))
	_, err := c.AddFunc(s.opts.SweepSchedule, func() {
		result, err := s.Sweep()
		if err != nil {
			s.logger.Error().Err(err).Msg("Sweep failed")
			return
		}
		if result.Challenges > 0 || result.RevokedTokens > 0 {
			s.logger.Info().
				Int64("challenges", result.Challenges).
				Int64("revoked_tokens", result.RevokedTokens).
				Msg("Swept expired records")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", s.opts.SweepSchedule, err)
	}

	c.Start()
	s.logger.Info().Str("schedule", s.opts.SweepSchedule).Msg("Sweeper started")

	return func() {
		<-c.Stop().Done()
	}, nil
}
