package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tuxedo2mqtt/internal/config"
	"tuxedo2mqtt/internal/log"
	"tuxedo2mqtt/internal/tuxedo"
	"tuxedo2mqtt/internal/types"
	"tuxedo2mqtt/internal/util"
)

// defaultSettleDelay is how long the panel needs after acknowledging an
// arm/disarm command before its reported status reflects the command. A
// protocol property, not tunable on the wire.
const defaultSettleDelay = 2 * time.Second

// Panel drives one Tuxedo Touch panel: status polling, arm and disarm. The
// panel itself is the source of truth for state; this controller only caches
// the last interpreted status and reports changes.
type Panel struct {
	config     *config.Config
	log        *log.Logger
	tuxedo     *tuxedo.Tuxedo
	settle     time.Duration
	mu         sync.Mutex
	state        types.AlarmState
	rawStatus    string
	lastUpdate   time.Time
	eventChan    chan types.StateEvent
	eventsClosed bool
	stopChan     chan struct{}
	stopOnce     sync.Once
}

func NewPanel(cfg *config.Config, logger *log.Logger) (*Panel, error) {
	client, err := tuxedo.NewTuxedo(cfg.Tuxedo.Host, cfg.Tuxedo.APIKey, cfg.Tuxedo.APIIV, tuxedo.Options{
		Timeout:                   time.Duration(cfg.Tuxedo.Timeout) * time.Second,
		SkipCertificateValidation: *cfg.Tuxedo.SkipCertificateValidation,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create panel client: %v", err)
	}

	return &Panel{
		config:    cfg,
		log:       logger,
		tuxedo:    client,
		settle:    defaultSettleDelay,
		state:     types.AlarmStateUnavailable,
		eventChan: make(chan types.StateEvent, 16),
		stopChan:  make(chan struct{}),
	}, nil
}

// Start launches the status poll loop.
func (p *Panel) Start() {
	p.log.Info("Starting panel polling every %ds", p.config.Tuxedo.PollInterval)
	go p.pollLoop()
}

// Stop terminates the poll loop and closes the event channel.
func (p *Panel) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
}

// Events delivers a StateEvent whenever the interpreted state changes.
func (p *Panel) Events() <-chan types.StateEvent {
	return p.eventChan
}

// GetStatus polls the panel once and returns the interpreted state. Transport
// failures never propagate; they degrade to Unavailable with a logged
// diagnostic, and the true state is recovered on the next successful poll.
func (p *Panel) GetStatus(ctx context.Context) types.AlarmState {
	raw, err := p.tuxedo.GetSecurityStatus(ctx)
	if err != nil {
		p.logStatusFailure(err)
		return p.setState(types.AlarmStateUnavailable, "")
	}

	raw = util.Normalize(raw)
	state := tuxedo.ParseStatus(raw)
	if state == types.AlarmStateUnavailable {
		p.log.Warning("Unrecognized alarm status: %q", raw)
	}
	p.log.Panel("current alarm status: %s", raw)
	return p.setState(state, raw)
}

// Arm sends an arm command. An empty code falls back to the configured
// default; with neither, the command fails locally before any network call.
// On success the controller waits the settle delay and refreshes status once.
func (p *Panel) Arm(ctx context.Context, mode types.ArmMode, code string) error {
	armCode, err := p.resolveCode(code)
	if err != nil {
		return err
	}

	p.log.Info("Arming panel (%s)", mode)
	if err := p.tuxedo.Arm(ctx, mode, armCode); err != nil {
		p.log.Error("Failed to arm panel: %v", err)
		return err
	}

	p.settleAndRefresh(ctx)
	return nil
}

// Disarm sends a disarm command, with the same code resolution and settle
// semantics as Arm.
func (p *Panel) Disarm(ctx context.Context, code string) error {
	disarmCode, err := p.resolveCode(code)
	if err != nil {
		return err
	}

	p.log.Info("Disarming panel")
	if err := p.tuxedo.Disarm(ctx, disarmCode); err != nil {
		p.log.Error("Failed to disarm panel: %v", err)
		return err
	}

	p.settleAndRefresh(ctx)
	return nil
}

// State returns the last interpreted state and its raw status string.
func (p *Panel) State() (types.AlarmState, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.rawStatus
}

// SetCachedData seeds the controller with a persisted snapshot so a state
// can be published before the first poll.
func (p *Panel) SetCachedData(data *types.CacheData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = data.State
	p.rawStatus = data.RawStatus
	p.lastUpdate = data.LastUpdate
}

func (p *Panel) GetCacheableData() *types.CacheData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &types.CacheData{
		Host:       p.config.Tuxedo.Host,
		State:      p.state,
		RawStatus:  p.rawStatus,
		LastUpdate: p.lastUpdate,
	}
}

func (p *Panel) resolveCode(code string) (string, error) {
	if code != "" {
		return code, nil
	}
	if p.config.Tuxedo.Code != "" {
		return p.config.Tuxedo.Code, nil
	}
	p.log.Warning("arm code is missing")
	return "", tuxedo.ErrMissingCode
}

// settleAndRefresh waits out the settle delay and polls once. The status
// reported before the delay elapses is not authoritative.
func (p *Panel) settleAndRefresh(ctx context.Context) {
	select {
	case <-time.After(p.settle):
	case <-ctx.Done():
		p.log.Debug("Skipping post-command refresh: %v", ctx.Err())
		return
	case <-p.stopChan:
		return
	}
	p.GetStatus(ctx)
}

func (p *Panel) setState(state types.AlarmState, raw string) types.AlarmState {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := state != p.state || raw != p.rawStatus
	p.state = state
	p.rawStatus = raw
	p.lastUpdate = time.Now()

	if changed {
		p.log.Info("Panel state changed to %s", state)
		if !p.eventsClosed {
			// Non-blocking: a slow consumer loses events, not the poll loop.
			select {
			case p.eventChan <- types.StateEvent{State: state, RawStatus: raw, Time: time.Now()}:
			default:
				p.log.Warning("Dropping state event, no consumer")
			}
		}
	}
	return state
}

func (p *Panel) closeEvents() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventsClosed = true
	close(p.eventChan)
}

func (p *Panel) pollLoop() {
	defer p.closeEvents()

	p.GetStatus(context.Background())

	ticker := time.NewTicker(time.Duration(p.config.Tuxedo.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.GetStatus(context.Background())
		}
	}
}

func (p *Panel) logStatusFailure(err error) {
	if errors.Is(err, tuxedo.ErrMalformedCiphertext) {
		// Wrong key/IV or protocol mismatch, polling again will not help.
		p.log.Error("unable to decode alarm status, check api_key/api_iv: %v", err)
		return
	}
	p.log.Error("unable to get alarm status: %v", err)
}
