package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	rtsup "streamwatch/internal/runtime/supervisor"
	logx "streamwatch/pkg/logx"
)

// Desktop delivers a notification to the local desktop. Implementations are
// provided by the embedding application; a nil Desktop disables that channel.
type Desktop interface {
	Send(ctx context.Context, title, message string) error
}

// Pusher delivers a message to a remote push channel (Telegram).
type Pusher interface {
	Push(ctx context.Context, text string) error
}

type Config struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	PushEnabled bool          `json:"push_enabled" yaml:"push_enabled"`
	QueueSize   int           `json:"queue_size" yaml:"queue_size"`
	RatePerSec  int           `json:"rate_per_sec" yaml:"rate_per_sec"`
	SendTimeout time.Duration `json:"-" yaml:"-"`

	Telegram  TelegramConfig `json:"telegram" yaml:"telegram"`
	Templates Templates      `json:"templates" yaml:"templates"`
}

// Templates carries the push message templates. Placeholders are expanded
// per message: [room_name], [title], [time], [url], [platform].
type Templates struct {
	LiveStartTitle   string `json:"live_start_title" yaml:"live_start_title"`
	LiveStartContent string `json:"live_start_content" yaml:"live_start_content"`
	LiveEndTitle     string `json:"live_end_title" yaml:"live_end_title"`
	LiveEndContent   string `json:"live_end_content" yaml:"live_end_content"`
}

type jobKind int

const (
	jobDesktop jobKind = iota
	jobPush
)

type job struct {
	kind  jobKind
	title string
	body  string
}

// Service is an async best-effort notification pipeline: a bounded queue
// drained by one worker under a rate limit. Enqueue never blocks the caller;
// a full queue or a failed send drops the message with a warn log. Liveness
// decisions never depend on delivery.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	desktop Desktop
	pusher  Pusher

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan job
	sup       *rtsup.Supervisor
}

func New(cfg Config, desktop Desktop, pusher Pusher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:     log,
		desktop: desktop,
		pusher:  pusher,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps in a new configuration. Queue size takes effect on the next
// Start; rate limit and templates apply immediately.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notify"))),
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	sup.GoRestart("worker", func(c context.Context) error {
		s.workerLoop(c, q)
		// Clean exits happen on shutdown (queue close).
		return c.Err()
	})
}

// Stop blocks new messages and drains the queue until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue = nil
	s.sup = nil
	s.mu.Unlock()

	close(q)
	if sup != nil {
		if err := sup.Wait(ctx); err != nil {
			sup.Cancel()
		}
	}
}

// Notify queues a desktop notification. Fire-and-forget.
func (s *Service) Notify(title, message string) {
	s.enqueue(job{kind: jobDesktop, title: title, body: message})
}

// Push queues a Telegram message. Fire-and-forget.
func (s *Service) Push(title, body string) {
	s.mu.Lock()
	pushEnabled := s.cfg.PushEnabled
	s.mu.Unlock()
	if !pushEnabled {
		return
	}
	s.enqueue(job{kind: jobPush, title: title, body: body})
}

// TemplatesSnapshot returns the current push templates.
func (s *Service) TemplatesSnapshot() Templates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Templates
}

// enqueue performs a non-blocking send while holding the lock: Stop flips
// accepting under the same lock before closing the queue, so a send can never
// hit a closed channel.
func (s *Service) enqueue(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || !s.accepting || s.queue == nil {
		return
	}
	select {
	case s.queue <- j:
	default:
		s.log.Warn("notification dropped, queue full", logx.String("title", j.title))
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	lim := s.limiter
	timeout := s.cfg.SendTimeout
	desktop := s.desktop
	pusher := s.pusher
	s.mu.Unlock()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobDesktop:
		if desktop == nil {
			return
		}
		err = desktop.Send(cctx, j.title, j.body)
	case jobPush:
		if pusher == nil {
			return
		}
		text := j.body
		if j.title != "" {
			text = j.title + "\n" + j.body
		}
		err = pusher.Push(cctx, text)
	}
	if err != nil {
		s.log.Warn("notification send failed", logx.String("title", j.title), logx.Err(err))
	}
}
