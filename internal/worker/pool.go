package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pms-assistant/internal/metrics"
	"pms-assistant/internal/models"
	"pms-assistant/internal/services"
)

type job struct {
	ctx    context.Context
	userID uuid.UUID
	msg    models.WSMessage
}

// Pool delivers realtime events off the request path. Events are queued and
// handed to the sink by a fixed set of goroutines; when the queue is full the
// event is dropped.
type Pool struct {
	sink        services.UpdatePublisher
	queue       chan job
	workerCount int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(sink services.UpdatePublisher, workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		sink:        sink,
		queue:       make(chan job, queueSize),
		workerCount: workerCount,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Info().Int("workers", p.workerCount).Msg("notification workers started")
}

// Stop refuses new events, delivers what is already queued and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// PublishUpdate queues msg for userID. It never blocks. The request context
// is detached from its cancellation so the event survives the response.
func (p *Pool) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.queue <- job{ctx: context.WithoutCancel(ctx), userID: userID, msg: msg}:
		metrics.NotificationsTotal.WithLabelValues("queued").Inc()
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		zerolog.Ctx(ctx).Warn().Str("type", msg.Type).Msg("notification queue full, dropping event")
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for j := range p.queue {
		p.sink.PublishUpdate(j.ctx, j.userID, j.msg)
	}

	log.Debug().Int("worker", id).Msg("notification worker shutting down")
}
