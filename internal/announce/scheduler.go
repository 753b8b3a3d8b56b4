// Package announce moves recognised orders from an unbounded intake queue into a
// bounded presentation queue and plays their audio announcements one at a time.
package announce

import (
	"log/slog"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
)

const (
	outcomePlayed = "played"
	outcomeSilent = "silent"
	outcomeFailed = "failed"
)

type Config struct {
	Capacity         int
	PromoteInterval  time.Duration
	PlaybackInterval time.Duration
}

// Scheduler owns the intake and presentation queues. Methods must be called on the
// event loop.
//
// Promotion into presentation happens only on the promote tick. The playback pass
// runs on its own tick and right after an announcement finishes; while audio plays
// the playback tick is stopped so at most one announcement is ever in flight.
type Scheduler struct {
	loop  *eventloop.Loop
	audio domain.AudioSink
	view  domain.QueueRenderer
	cfg   Config

	intake       []domain.OrderRecord
	presentation []*domain.PresentationSlot

	playing     bool
	token       uint64
	startedAt   time.Time
	lastOutcome string

	promote  *eventloop.Timer
	playback *eventloop.Timer
}

func New(loop *eventloop.Loop, audio domain.AudioSink, view domain.QueueRenderer, cfg Config) *Scheduler {
	return &Scheduler{loop: loop, audio: audio, view: view, cfg: cfg}
}

// Start arms the promote and playback ticks.
func (s *Scheduler) Start() {
	s.promote.Stop()
	s.promote = s.loop.Every(s.cfg.PromoteInterval, s.promoteTick)
	if !s.playing {
		s.armPlayback()
	}
}

// Stop disarms both ticks and abandons any announcement in flight.
func (s *Scheduler) Stop() {
	s.promote.Stop()
	s.playback.Stop()
	s.token++
	s.playing = false
}

// Enqueue appends an order to intake.
func (s *Scheduler) Enqueue(order domain.OrderRecord) {
	s.intake = append(s.intake, order)
	metrics.IntakeDepth.Set(float64(len(s.intake)))
}

// IntakeLen returns the number of orders waiting for a presentation slot.
func (s *Scheduler) IntakeLen() int {
	return len(s.intake)
}

// Presentation returns a copy of the occupied slots, head first.
func (s *Scheduler) Presentation() []domain.PresentationSlot {
	out := make([]domain.PresentationSlot, len(s.presentation))
	for i, slot := range s.presentation {
		out[i] = *slot
	}
	return out
}

// Playing reports whether an announcement is in flight.
func (s *Scheduler) Playing() bool {
	return s.playing
}

func (s *Scheduler) promoteTick() {
	if len(s.intake) == 0 || len(s.presentation) >= s.cfg.Capacity {
		return
	}

	order := s.intake[0]
	s.intake[0] = domain.OrderRecord{}
	s.intake = s.intake[1:]
	s.presentation = append(s.presentation, &domain.PresentationSlot{Order: order, Phase: domain.PhaseQueued})

	metrics.IntakeDepth.Set(float64(len(s.intake)))
	metrics.PresentationDepth.Set(float64(len(s.presentation)))
	s.view.SlotPresented(order)
}

// pass clears finished or silent heads and starts the next announcement.
func (s *Scheduler) pass() {
	for len(s.presentation) > 0 && !s.playing {
		head := s.presentation[0]
		switch {
		case head.Phase == domain.PhaseAwaitingAck:
			s.evict(s.lastOutcome)
		case !head.Order.HasAudio():
			s.evict(outcomeSilent)
		default:
			s.play(head)
		}
	}
}

func (s *Scheduler) play(head *domain.PresentationSlot) {
	head.Phase = domain.PhaseDisplayingAudio
	s.playing = true
	s.token++
	token := s.token
	s.startedAt = s.loop.Now()

	s.playback.Stop()
	s.playback = nil

	s.view.SlotAnnouncing(head.Order)
	slog.Debug("Announcing order", "order_id", head.Order.ID, "order_number", head.Order.OrderNumber)

	done := s.audio.Play(head.Order.Audio)
	go func() {
		err := <-done
		s.loop.Post(func() { s.played(token, err) })
	}()
}

func (s *Scheduler) played(token uint64, err error) {
	if token != s.token || !s.playing {
		return
	}
	s.playing = false
	metrics.PlaybackDuration.Observe(s.loop.Now().Sub(s.startedAt).Seconds())

	s.lastOutcome = outcomePlayed
	if err != nil {
		s.lastOutcome = outcomeFailed
		slog.Warn("Announcement playback failed", "order_id", s.presentation[0].Order.ID, "error", err)
	}
	s.presentation[0].Phase = domain.PhaseAwaitingAck

	s.pass()
	if !s.playing {
		s.armPlayback()
	}
}

func (s *Scheduler) evict(outcome string) {
	head := s.presentation[0]
	s.presentation[0] = nil
	s.presentation = s.presentation[1:]
	head.Phase = domain.PhaseRemoved

	metrics.PresentationDepth.Set(float64(len(s.presentation)))
	metrics.AnnouncementsTotal.WithLabelValues(outcome).Inc()
	s.view.SlotRemoved(head.Order)
}

func (s *Scheduler) armPlayback() {
	s.playback.Stop()
	s.playback = s.loop.Every(s.cfg.PlaybackInterval, s.pass)
}
