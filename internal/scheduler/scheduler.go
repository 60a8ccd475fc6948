package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/market"
	"TrancheVault/internal/model"
	"TrancheVault/internal/notifier"
	"TrancheVault/internal/recorder"
	"TrancheVault/internal/vault"
)

var log = logrus.WithField("module", "scheduler")

const alertBuffer = 64

// Schedule holds the cron expressions (with seconds) for each job.
// An empty expression disables the job.
type Schedule struct {
	Keeper     string
	Checkpoint string
	Report     string
	Market     string
}

// Scheduler runs the vault's operator jobs and answers chat commands.
type Scheduler struct {
	Cron        *cron.Cron
	Vault       *vault.Vault
	Operator    common.Address
	AutoRestart bool
	Collector   *market.Collector
	Notifier    notifier.Sender
	Recorder    recorder.Recorder
	Decimals    int32
	Ctx         context.Context

	alerts chan string
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a new Scheduler. col may be nil when no market is configured.
func NewScheduler(ctx context.Context, v *vault.Vault, operator common.Address, col *market.Collector, n notifier.Sender, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Vault:     v,
		Operator:  operator,
		Collector: col,
		Notifier:  n,
		Recorder:  rec,
		Ctx:       ctx,
		alerts:    make(chan string, alertBuffer),
		stop:      make(chan struct{}),
	}
}

// RegisterAll registers the keeper, checkpoint, report and market jobs.
func (s *Scheduler) RegisterAll(sc Schedule) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"keeper", sc.Keeper, s.keeperTask},
		{"checkpoint", sc.Checkpoint, s.checkpointTask},
		{"report", sc.Report, s.reportTask},
		{"market", sc.Market, s.marketTask},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if j.name == "market" && s.Collector == nil {
			log.Info("market job disabled, no collector configured")
			continue
		}
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Attach forwards vault events to the recorder and operator alerts.
func (s *Scheduler) Attach() {
	s.Vault.Subscribe(s.onEvent)
}

// Start starts the cron scheduler and the alert sender.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runAlerts()
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully, waiting for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	close(s.stop)
	s.wg.Wait()
	log.Info("scheduler stopped")
}

func (s *Scheduler) onEvent(evt model.Event) {
	if err := s.Recorder.RecordEvent(evt); err != nil {
		log.WithError(err).WithField("event", evt.Name()).Error("record event")
	}
	switch evt.(type) {
	case model.PhaseTransitioned, model.CycleStarted, model.EmergencyModeToggled, model.OwnershipTransferred:
		s.alert(notifier.FormatEvent(evt, s.Decimals))
	}
}

// alert queues text for the alert sender without blocking the vault caller.
func (s *Scheduler) alert(text string) {
	select {
	case s.alerts <- text:
	default:
		log.WithField("text", text).Warn("alert queue full, dropping")
	}
}

func (s *Scheduler) runAlerts() {
	defer s.wg.Done()
	for {
		select {
		case text := <-s.alerts:
			s.trySend(text)
		case <-s.stop:
			return
		case <-s.Ctx.Done():
			return
		}
	}
}

func (s *Scheduler) keeperTask() {
	current, err := s.Vault.AdvanceIfDue(s.Ctx, s.Operator)
	switch {
	case errors.Is(err, vault.ErrPhaseTransitionNotReady):
		return
	case err != nil:
		log.WithError(err).Error("keeper advance")
		return
	}
	if current != model.PhaseFinalClaims || !s.AutoRestart {
		return
	}
	cycle, err := s.Vault.RestartCycle(s.Ctx, s.Operator)
	switch {
	case errors.Is(err, vault.ErrPhaseTransitionNotReady):
	case err != nil:
		log.WithError(err).Error("keeper restart")
	default:
		log.WithField("cycle", cycle).Info("keeper restarted cycle")
	}
}

func (s *Scheduler) checkpointTask() {
	if err := s.Vault.Checkpoint(); err != nil {
		log.WithError(err).Error("checkpoint")
	}
	if err := s.Vault.VerifyInvariants(); err != nil {
		log.WithError(err).Error("invariant check failed")
		s.alert(fmt.Sprintf("❌ <b>Invariant check failed</b>: %v", err))
	}
	st := s.Vault.Status()
	if err := s.Recorder.RecordSnapshot(&st); err != nil {
		log.WithError(err).Error("record snapshot")
	}
}

func (s *Scheduler) reportTask() {
	st := s.Vault.Status()
	s.trySend(notifier.FormatStatus(&st, s.Decimals))
}

func (s *Scheduler) marketTask() {
	if reply := s.marketReport(); reply != "" {
		s.trySend(reply)
	}
}

func (s *Scheduler) marketReport() string {
	if s.Collector == nil {
		return "Market data is not configured."
	}
	st := s.Vault.Status()
	ind, err := s.Collector.Collect(s.Ctx, market.NAV(&st))
	if err != nil {
		log.WithError(err).Error("market collect")
		return fmt.Sprintf("❌ Market data unavailable: %v", err)
	}
	return notifier.FormatMarketReport(ind)
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// "/status@MyBot" in group chats
	cmd, _, _ := strings.Cut(fields[0], "@")

	switch cmd {
	case "/status":
		st := s.Vault.Status()
		return notifier.FormatStatus(&st, s.Decimals)
	case "/phase":
		st := s.Vault.Status()
		return fmt.Sprintf("Phase <b>%s</b>, cycle %d, %s remaining", st.Phase, st.Cycle, st.TimeRemaining)
	case "/advance":
		current, err := s.Vault.AdvanceIfDue(s.Ctx, s.Operator)
		if err != nil {
			return commandError(err)
		}
		return fmt.Sprintf("Phase is now <b>%s</b>", current)
	case "/force_advance":
		current, err := s.Vault.ForceAdvance(s.Ctx, s.Operator)
		if err != nil {
			return commandError(err)
		}
		return fmt.Sprintf("Phase is now <b>%s</b>", current)
	case "/restart":
		cycle, err := s.Vault.RestartCycle(s.Ctx, s.Operator)
		if err != nil {
			return commandError(err)
		}
		return fmt.Sprintf("Cycle <b>%d</b> started", cycle)
	case "/emergency":
		active, err := s.Vault.ToggleEmergencyMode(s.Ctx, s.Operator)
		if err != nil {
			return commandError(err)
		}
		return fmt.Sprintf("Emergency mode: <b>%v</b>", active)
	case "/market":
		return s.marketReport()
	default:
		return notifier.FormatHelp()
	}
}

func commandError(err error) string {
	return fmt.Sprintf("❌ %s error: %v", vault.Classify(err), err)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.WithError(err).Error("send notification")
	}
}
