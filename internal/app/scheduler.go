/**
 * @description
 * Cron scheduler for the inspection-period reminder job. A delivered deal does
 * NOT auto-complete when its inspection window lapses; the job only publishes
 * a reminder event so the notification collaborator can nudge the buyer. The
 * deal stays in `delivered` until a participant or admin acts.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/escrowpad/escrow-service/internal/domain"
)

// Scheduler manages the periodic inspection scan.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	schedule string
}

// NewScheduler creates a scheduler running the inspection reminder job on the
// given cron schedule.
func NewScheduler(service *Service, schedule string) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{
		cron:     c,
		service:  service,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.service.RunInspectionReminderJob); err != nil {
		log.Printf("level=error component=scheduler msg=\"failed to schedule inspection reminder job\" schedule=%q err=%v", s.schedule, err)
		return
	}
	log.Printf("level=info component=scheduler msg=\"scheduled inspection reminder job\" schedule=%q", s.schedule)
	s.cron.Start()
}

// Stop gracefully stops the cron runner.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunInspectionReminderJob publishes one reminder per delivered deal whose
// inspection window has elapsed. Publishing is recorded so each deal is
// reminded at most once.
func (s *Service) RunInspectionReminderJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deals, err := s.repo.FindInspectionElapsedDeals(ctx)
	if err != nil {
		log.Printf("level=error component=scheduler msg=\"inspection scan failed\" err=%v", err)
		return
	}
	if len(deals) == 0 {
		return
	}

	for _, deal := range deals {
		if deal.BuyerID == nil || deal.SellerID == nil || deal.DeliveredAt == nil {
			continue
		}
		if s.events != nil {
			event := domain.InspectionElapsedEvent{
				DealID:      deal.ID,
				BuyerID:     *deal.BuyerID,
				SellerID:    *deal.SellerID,
				DeliveredAt: *deal.DeliveredAt,
				Timestamp:   time.Now().UTC(),
			}
			if err := s.events.Publish(ctx, s.eventExchange, "deal.inspection.elapsed", event); err != nil {
				log.Printf("level=warn component=scheduler msg=\"inspection reminder publish failed\" deal_id=%s err=%v", deal.ID, err)
				continue
			}
		}
		if err := s.repo.MarkInspectionNotified(ctx, deal.ID); err != nil {
			log.Printf("level=warn component=scheduler msg=\"failed to mark inspection reminder sent\" deal_id=%s err=%v", deal.ID, err)
		}
	}
	log.Printf("level=info component=scheduler msg=\"inspection reminder job finished\" reminded=%d", len(deals))
}
