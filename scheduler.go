/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/obslog"
)

const statsInterval = time.Minute

// startScheduler runs the idle reaper and the stats log line. The caller
// owns the returned scheduler and must shut it down.
func startScheduler(cfg *Config, hub *challenge.Hub) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.playerTimeout/2),
		gocron.NewTask(func() {
			if n := hub.ReapIdle(time.Now().Add(-cfg.playerTimeout)); n > 0 {
				obslog.L().Info("reaped_idle_connections", zap.Int("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reaper: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(statsInterval),
		gocron.NewTask(func() {
			s := hub.Stats()
			obslog.L().Info("stats",
				zap.Int("connected", s.Connected),
				zap.Int("waiting", s.Waiting),
				zap.Int("sessions", s.Sessions),
			)
		}),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule stats: %w", err)
	}

	sched.Start()

	return sched, nil
}
