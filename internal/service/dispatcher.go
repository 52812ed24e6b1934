package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"promosms/internal/constants"
	"promosms/internal/errors"
	"promosms/internal/metrics"
	"promosms/internal/models"
	"promosms/pkg/gateway"

	"github.com/sirupsen/logrus"
)

// MessageStore is the dispatcher's view of message persistence.
type MessageStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Message, error)
	RecordOutcome(ctx context.Context, key int64, outcome models.SendOutcome) error
}

// Dispatcher periodically claims due messages and submits them to the
// gateway. Each claim grants exactly one delivery attempt; there is no
// automatic retry, a failed attempt stays failed until an operator acts.
type Dispatcher struct {
	store       MessageStore
	gateway     gateway.Client
	interval    time.Duration
	sendTimeout time.Duration
	maxInFlight int
	batchSize   int
	logger      *logrus.Logger
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewDispatcher(store MessageStore, gw gateway.Client, cfg models.DispatchConfig, logger *logrus.Logger) *Dispatcher {
	interval := cfg.IntervalSec
	if interval <= 0 {
		interval = constants.DefaultDispatchIntervalSec
	}
	sendTimeout := cfg.SendTimeoutSec
	if sendTimeout <= 0 {
		sendTimeout = constants.DefaultSendTimeoutSec
	}
	maxInFlight := cfg.MaxConcurrent
	if maxInFlight <= 0 {
		maxInFlight = constants.DefaultMaxConcurrentSends
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultClaimBatchSize
	}

	return &Dispatcher{
		store:       store,
		gateway:     gw,
		interval:    time.Duration(interval) * time.Second,
		sendTimeout: time.Duration(sendTimeout) * time.Second,
		maxInFlight: maxInFlight,
		batchSize:   batchSize,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Start runs the dispatch loop until the context is cancelled or Stop is
// called. A cycle runs immediately on start so a restart does not delay
// overdue messages by a full interval.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.WithField("interval", d.interval.String()).Info("Starting dispatch loop")

	d.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatch context cancelled, stopping")
			d.wg.Wait()
			return
		case <-d.stopCh:
			d.logger.Info("Dispatch stop signal received, stopping")
			d.wg.Wait()
			return
		case <-ticker.C:
			d.RunCycle(ctx)
		}
	}
}

// Stop signals the loop to exit. Safe to call more than once; in-flight
// sends finish and record their outcomes before Start returns.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
}

// RunCycle claims every due message and delivers the batch with bounded
// concurrency. Exported so an admin endpoint can trigger a cycle outside
// the ticker.
func (d *Dispatcher) RunCycle(ctx context.Context) {
	claimed, err := d.store.ClaimDue(ctx, time.Now().UTC(), d.batchSize)
	if err != nil {
		d.logger.WithError(err).Error("Failed to claim due messages")
		return
	}
	if len(claimed) == 0 {
		return
	}

	d.logger.WithField("count", len(claimed)).Info("Claimed due messages")
	metrics.IncrementCounter("dispatch_cycles", nil)

	sem := make(chan struct{}, d.maxInFlight)
	for _, msg := range claimed {
		sem <- struct{}{}
		d.wg.Add(1)
		go func(msg models.Message) {
			defer d.wg.Done()
			defer func() { <-sem }()
			d.deliver(ctx, msg)
		}(msg)
	}

	for i := 0; i < d.maxInFlight; i++ {
		sem <- struct{}{}
	}
}

// deliver sends one claimed message and records its terminal outcome.
// The outcome write uses a fresh context: a delivery that went out must
// be recorded even when the loop context is already cancelled.
func (d *Dispatcher) deliver(ctx context.Context, msg models.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.gateway.Send(sendCtx, msg.Recipient, msg.Body)
	metrics.RecordTimer("gateway_send", time.Since(start), nil)

	outcome := d.classifyOutcome(result, err)

	recordCtx, recordCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer recordCancel()

	if err := d.store.RecordOutcome(recordCtx, msg.Key, outcome); err != nil {
		d.logger.WithError(err).WithField("key", msg.Key).Error("Failed to record send outcome")
		return
	}

	entry := d.logger.WithFields(logrus.Fields{
		"key":    msg.Key,
		"code":   outcome.Code,
		"status": outcome.TerminalStatus(),
	})
	if outcome.Accepted {
		entry.Info("Message sent")
	} else {
		entry.Warn("Message failed")
	}
	metrics.IncrementCounter("messages_dispatched",
		map[string]string{"result": string(outcome.TerminalStatus())})
}

// classifyOutcome maps a gateway call's result to a terminal outcome.
// Transport-level failures get synthetic codes outside the gateway's own
// vocabulary so reporting can tell them apart.
func (d *Dispatcher) classifyOutcome(result *gateway.SubmitResult, err error) models.SendOutcome {
	now := time.Now().UTC()

	if err == nil {
		return models.SendOutcome{
			Accepted:     result.Accepted(),
			Code:         result.Code,
			Message:      result.Text,
			GatewayMsgID: result.MessageID,
			CompletedAt:  now,
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return models.SendOutcome{
			Code:        constants.CodeTimeout,
			Message:     "gateway send timed out",
			CompletedAt: now,
		}
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if status, ok := appErr.Context["status"]; ok {
			return models.SendOutcome{
				Code:        constants.CodeHTTPError,
				Message:     fmt.Sprintf("gateway HTTP status %v", status),
				CompletedAt: now,
			}
		}
	}

	return models.SendOutcome{
		Code:        constants.CodeNetworkError,
		Message:     err.Error(),
		CompletedAt: now,
	}
}
