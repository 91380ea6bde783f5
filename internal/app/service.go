// Package service wires the detection engine, its serialization points and its side
// effects from configuration, and exposes the operations used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/okian/tempoguard/internal/adapters/alert"
	eventqueue "github.com/okian/tempoguard/internal/adapters/mq/queue"
	workerpool "github.com/okian/tempoguard/internal/adapters/mq/worker"
	"github.com/okian/tempoguard/internal/adapters/repository"
	"github.com/okian/tempoguard/internal/adapters/transport/redistransport"
	"github.com/okian/tempoguard/internal/adapters/transport/watermilltransport"
	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/check"
	"github.com/okian/tempoguard/internal/domain/cluster"
	"github.com/okian/tempoguard/internal/domain/dedupe"
	"github.com/okian/tempoguard/internal/domain/engine"
	"github.com/okian/tempoguard/internal/domain/ledger"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/normalize"
	"github.com/okian/tempoguard/internal/domain/state"
	"github.com/okian/tempoguard/internal/supervisor"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

const defaultHistoryLimit = 50

// levelsFunc lets the synchronizer read engine levels before the engine exists.
type levelsFunc func() []model.ClusterVerdict

func (f levelsFunc) Levels() []model.ClusterVerdict { return f() }

// Service owns one node: it routes every task for a participant to that participant's
// partition and supervises the workers and side-effect services.
type Service struct {
	mu sync.Mutex

	cfg    *config.Config
	nodeID string

	// Core components
	normalizer *normalize.Normalizer
	deduper    dedupe.Deduper
	ledger     *ledger.Ledger
	engine     *engine.Engine
	queue      *eventqueue.Partitioned
	pool       *supervisor.Once

	// Side effects
	transport  cluster.Transport
	sync       *cluster.Synchronizer
	dispatcher *alert.Dispatcher
	notifiers  []alert.Notifier
	store      repository.Store
	gateway    *repository.Gateway

	tree   *supervisor.Tree
	clock  normalize.Clock
	wall   func() time.Time
	cancel context.CancelFunc
	done   <-chan error

	// State
	started bool
	stopped bool

	log logger.Logger
}

// New builds a node from cfg. Network transports connect here so a bad address fails
// at startup rather than on the first escalation.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:   cfg,
		clock: normalize.NewMonotonicClock(),
		wall:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("service")
	}

	s.nodeID = cfg.NodeID
	if s.nodeID == "" {
		s.nodeID = uuid.NewString()
	}
	s.log = s.log.With(logger.String("node", s.nodeID))

	l, err := buildLedger(cfg)
	if err != nil {
		return nil, err
	}
	s.ledger = l

	registry, err := check.BuildRegistry(cfg.Checks)
	if err != nil {
		return nil, err
	}

	if s.transport == nil {
		if s.transport, err = buildTransport(ctx, cfg.Cluster); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		if s.store, err = buildStore(cfg.Persistence); err != nil {
			_ = s.transport.Close()
			return nil, err
		}
	}
	if s.notifiers == nil {
		if s.notifiers, err = buildNotifiers(cfg.Alerts); err != nil {
			s.closeResources(ctx)
			return nil, err
		}
	}

	s.normalizer = normalize.New(normalize.WithClock(s.clock))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	s.queue = eventqueue.NewPartitioned(
		eventqueue.WithPartitions(cfg.Partitions),
		eventqueue.WithCapacity(cfg.PartitionQueueSize),
	)

	s.sync = cluster.New(s.transport, s.nodeID, s,
		levelsFunc(func() []model.ClusterVerdict { return s.engine.Levels() }),
		cluster.WithTopic(cfg.Cluster.Topic),
		cluster.WithReconcileInterval(cfg.Cluster.ReconcileInterval),
		cluster.WithOutboundQueueSize(cfg.Cluster.OutboundQueueSize),
	)
	s.dispatcher = alert.NewDispatcher(
		alert.WithQueueSize(cfg.Alerts.QueueSize),
		alert.WithTimeout(cfg.Alerts.Timeout),
		alert.WithNotifiers(s.notifiers...),
	)

	engineOpts := []engine.Option{
		engine.WithNodeID(s.nodeID),
		engine.WithBroadcaster(s.sync),
		engine.WithAlertSink(s.dispatcher),
		engine.WithClock(s.clock),
		engine.WithWallClock(s.wall),
		engine.WithVerdictBook(engine.NewVerdictBook(cfg.Cluster.VerdictBookSize)),
	}
	if s.store != nil {
		s.gateway = repository.NewGateway(s.store,
			repository.WithQueueSize(cfg.Persistence.QueueSize),
			repository.WithMaxRetries(cfg.Persistence.MaxRetries),
			repository.WithRetryBackoff(cfg.Persistence.RetryBackoff),
		)
		engineOpts = append(engineOpts, engine.WithSnapshotSink(s.gateway))
	}

	store := state.NewStore(
		state.WithRingSize(cfg.RingSize),
		state.WithMaxTrackedActions(cfg.MaxTrackedActions),
	)
	s.engine = engine.New(registry, store, l, engineOpts...)

	s.pool = supervisor.NewOnce(workerpool.NewPool(s.queue, s.engine, workerpool.WithName("detection-workers")))
	s.tree = supervisor.NewTree("tempoguard", logger.Slog(), supervisor.DefaultTreeConfig())
	s.tree.AddDetection(s.pool)
	s.tree.AddEffect(s.sync)
	s.tree.AddEffect(s.dispatcher)
	if s.gateway != nil {
		s.tree.AddEffect(s.gateway)
	}
	return s, nil
}

func buildLedger(cfg *config.Config) (*ledger.Ledger, error) {
	decay, err := ledger.DecayByName(cfg.Ledger.DecayFunction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	opts := []ledger.Option{ledger.WithDecay(decay), ledger.WithHistorySize(cfg.Ledger.HistorySize)}
	all := cfg.Checks.All()
	for _, id := range cfg.Checks.Order() {
		cc := all[id]
		if !cc.Enabled {
			continue
		}
		opts = append(opts, ledger.WithPolicy(id, ledger.Policy{
			DecayRatePerSecond: cc.DecayRatePerSecond,
			Thresholds:         cc.EscalationThresholds,
		}))
	}
	return ledger.New(opts...), nil
}

func buildTransport(ctx context.Context, cfg config.ClusterConfig) (cluster.Transport, error) {
	switch cfg.Transport {
	case "memory":
		return watermilltransport.Shared(watermilltransport.NewGoChannel()), nil
	case "redis":
		return redistransport.New(ctx, cfg.RedisURL)
	case "nats":
		return watermilltransport.NewNATS(cfg.NATSURL)
	default:
		return cluster.NewNoop(), nil
	}
}

func buildStore(cfg config.PersistenceConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "memory":
		return repository.NewMemoryStore(cfg.HistoryLimit), nil
	case "badger":
		return repository.OpenBadger(cfg.Path)
	default:
		return nil, nil
	}
}

func buildNotifiers(cfg config.AlertsConfig) ([]alert.Notifier, error) {
	notifiers := []alert.Notifier{alert.NewLogNotifier()}
	if cfg.WebhookURL == "" {
		return notifiers, nil
	}
	webhook, err := alert.NewWebhookNotifier(cfg.WebhookURL,
		alert.WithFormat(cfg.WebhookFormat),
		alert.WithRateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	)
	if err != nil {
		return nil, err
	}
	return append(notifiers, webhook), nil
}

// AddAPI supervises svc in the api layer. Call before Start.
func (s *Service) AddAPI(svc suture.Service) {
	s.tree.AddAPI(svc)
}

// Start runs the supervisor tree in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = s.tree.ServeBackground(runCtx)
	s.started = true

	s.log.Info(ctx, "service started",
		logger.Int("partitions", s.queue.Partitions()),
		logger.Int("checks", len(s.ledgerChecks())),
		logger.String("transport", s.cfg.Cluster.Transport),
		logger.String("persistence", s.cfg.Persistence.Driver),
	)
	return nil
}

// Stop closes the partitions, waits for queued tasks to be handled, then stops the side
// effects and releases the transport and store. ctx bounds the wait.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.log.Info(ctx, "stopping service...")

	_ = s.queue.Close()

	var err error
	if s.started {
		select {
		case <-s.pool.Done():
		case <-ctx.Done():
			err = fmt.Errorf("waiting for workers to drain: %w", ctx.Err())
		}
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			if err == nil {
				err = fmt.Errorf("waiting for supervisor: %w", ctx.Err())
			}
		}
	}

	s.closeResources(ctx)
	s.started = false
	s.log.Info(ctx, "service stopped")
	return err
}

func (s *Service) closeResources(ctx context.Context) {
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.log.Warn(ctx, "closing transport failed", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}
}

// NodeID identifies this node in cluster verdicts.
func (s *Service) NodeID() string { return s.nodeID }

// Connect starts a detection session for id.
func (s *Service) Connect(ctx context.Context, id string) error {
	return s.lifecycle(ctx, model.TaskConnect, id)
}

// Disconnect ends id's session. Its cluster levels stay remembered for a reconnect.
func (s *Service) Disconnect(ctx context.Context, id string) error {
	return s.lifecycle(ctx, model.TaskDisconnect, id)
}

func (s *Service) lifecycle(ctx context.Context, kind model.TaskKind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidParticipant
	}
	return s.wait(ctx, model.Task{Kind: kind, ParticipantID: id})
}

// Submit normalizes raw and queues it on its participant's partition. Irrelevant kinds
// and duplicate deliveries are accepted and ignored. A full partition returns
// ErrBackpressure; the event is not recorded as seen so it may be retried.
func (s *Service) Submit(ctx context.Context, raw normalize.RawEvent) error {
	ev, ok, err := s.normalizer.Normalize(raw)
	if err != nil {
		metrics.RecordEventDropped("malformed")
		return err
	}
	if !ok {
		metrics.RecordEventDropped("irrelevant")
		return nil
	}
	metrics.RecordEventNormalized(ev.Type.String())

	var key string
	if raw.DeliveryID != "" {
		key = dedupe.Key(ev.ParticipantID, raw.DeliveryID)
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordEventDuplicate()
			s.log.Debug(ctx, "duplicate delivery skipped",
				logger.String("participant", ev.ParticipantID),
				logger.String("delivery", raw.DeliveryID))
			return nil
		}
	}

	if !s.queue.Enqueue(ctx, model.Task{Kind: model.TaskEvent, ParticipantID: ev.ParticipantID, Event: ev}) {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		if s.queue.IsClosed() {
			return ErrStopped
		}
		return ErrBackpressure
	}
	return nil
}

// SubmitVerdict routes a verdict received from another node to its participant's partition.
func (s *Service) SubmitVerdict(ctx context.Context, v model.ClusterVerdict) error {
	return s.wait(ctx, model.Task{Kind: model.TaskVerdict, ParticipantID: v.ParticipantID, Verdict: v})
}

// Reset clears one check for id, or every check when checkID is empty, and tells the
// cluster. It works for disconnected participants whose levels are still remembered.
func (s *Service) Reset(ctx context.Context, id, checkID, reason string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidParticipant
	}
	if checkID != "" && !s.ledger.Known(checkID) {
		return fmt.Errorf("%w: %q", ErrUnknownCheck, checkID)
	}
	if !s.engine.Known(id) {
		return fmt.Errorf("%w: %q", ErrUnknownParticipant, id)
	}
	return s.wait(ctx, model.Task{
		Kind:          model.TaskReset,
		ParticipantID: id,
		Reset:         model.ResetRequest{CheckID: checkID, Reason: reason},
	})
}

func (s *Service) wait(ctx context.Context, t model.Task) error { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	if err := s.queue.EnqueueWait(ctx, t); err != nil {
		if errors.Is(err, eventqueue.ErrClosed) {
			return ErrStopped
		}
		return err
	}
	return nil
}

// Participant returns the latest published view of a connected participant.
func (s *Service) Participant(id string) (model.ParticipantView, bool) {
	return s.engine.Participant(id)
}

// History returns up to limit persisted snapshots for id, newest first.
func (s *Service) History(ctx context.Context, id string, limit int) ([]model.ViolationSnapshot, error) {
	if s.gateway == nil {
		return nil, ErrPersistenceDisabled
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.gateway.History(ctx, id, limit)
}

// Levels lists the non-clear levels of connected participants.
func (s *Service) Levels() []model.ClusterVerdict {
	return s.engine.Levels()
}

func (s *Service) ledgerChecks() []string {
	var ids []string
	for _, id := range s.cfg.Checks.Order() {
		if s.ledger.Known(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	queueLen := s.queue.Len()
	participants := s.engine.Participants()
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateParticipants(participants)

	return map[string]any{
		"started":      started,
		"nodeId":       s.nodeID,
		"partitions":   s.queue.Partitions(),
		"queueLength":  queueLen,
		"participants": participants,
		"dedupeSize":   s.deduper.Size(),
		"checks":       s.ledgerChecks(),
		"transport":    s.cfg.Cluster.Transport,
		"persistence":  s.cfg.Persistence.Driver,
	}
}
