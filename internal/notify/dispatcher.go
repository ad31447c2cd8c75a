// Package notify delivers out-of-band messages (hit and kill notices) to
// chat identities without ever blocking the game engine.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"powpow/internal/config"
	"powpow/pkg/logger"

	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by a Sender when the identity has no open
// channel. The message is discarded.
var ErrNotConnected = errors.New("recipient not connected")

// ErrRateLimited is returned by a Sender when the transport pushes back.
// The dispatcher backs off before the next send.
var ErrRateLimited = errors.New("transport rate limited")

// Sender delivers one text message to one identity
type Sender interface {
	Send(ctx context.Context, identity, text string) error
}

// Message is one queued notification
type Message struct {
	Identity string
	Text     string
}

// Dispatcher handles the delivery of notices:
// - Queue management (Drop Newest)
// - Per-send timeout
// - Exponential backoff when the transport pushes back
type Dispatcher struct {
	sender Sender
	queue  chan Message
	quit   chan struct{}
	wg     sync.WaitGroup
	log    *logrus.Entry

	sendTimeout time.Duration

	// Backoff state, owned by the dispatcher goroutine
	currentBackoff time.Duration
	maxBackoff     time.Duration

	// OnResult is called after every delivery attempt and drop with
	// "sent", "failed" or "dropped"
	OnResult func(outcome string)

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher over a sender
func NewDispatcher(sender Sender, cfg config.NotifyConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	return &Dispatcher{
		sender:      sender,
		queue:       make(chan Message, cfg.QueueSize),
		quit:        make(chan struct{}),
		log:         logger.Component("notify"),
		sendTimeout: cfg.SendTimeout,
		maxBackoff:  cfg.MaxBackoff,
	}
}

// Start begins the dispatcher loop
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.dispatcher()
	d.log.Info("Notification dispatcher started")
}

// Stop gracefully shuts down the dispatcher. Queued messages are dropped.
func (d *Dispatcher) Stop() {
	close(d.quit)
	d.wg.Wait()
	d.log.WithFields(logrus.Fields{
		"sent":    d.sent.Load(),
		"failed":  d.failed.Load(),
		"dropped": d.dropped.Load(),
	}).Info("Notification dispatcher stopped")
}

// Notify queues a message.
// Non-blocking: if the queue is full the message is DROPPED (Drop Newest).
func (d *Dispatcher) Notify(identity, text string) bool {
	select {
	case d.queue <- Message{Identity: identity, Text: text}:
		return true
	default:
		n := d.dropped.Add(1)
		if n%100 == 1 {
			d.log.WithField("dropped", n).Warn("Notification queue full, dropping")
		}
		d.result("dropped")
		return false
	}
}

// dispatcher is the main event loop
func (d *Dispatcher) dispatcher() {
	defer d.wg.Done()

	for {
		select {
		case <-d.quit:
			return
		case msg := <-d.queue:
			if !d.deliver(msg) {
				return
			}
		}
	}
}

// deliver sends one message and handles errors. Returns false when the
// dispatcher was stopped during a backoff.
func (d *Dispatcher) deliver(msg Message) bool {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	err := d.sender.Send(ctx, msg.Identity, msg.Text)
	cancel()

	switch {
	case err == nil:
		d.sent.Add(1)
		d.result("sent")
		if d.currentBackoff > 0 {
			d.currentBackoff = 0
			d.log.Info("Transport recovered, backoff reset")
		}
		return true

	case errors.Is(err, ErrNotConnected):
		// Offline recipients simply miss the notice
		d.failed.Add(1)
		d.result("failed")
		return true

	case errors.Is(err, ErrRateLimited), errors.Is(err, context.DeadlineExceeded):
		d.failed.Add(1)
		d.result("failed")

		if d.currentBackoff == 0 {
			d.currentBackoff = 100 * time.Millisecond
		} else {
			d.currentBackoff *= 2
			if d.currentBackoff > d.maxBackoff {
				d.currentBackoff = d.maxBackoff
			}
		}
		d.log.WithError(err).WithField("backoff", d.currentBackoff).Warn("Transport pushing back")

		select {
		case <-time.After(d.currentBackoff):
			return true
		case <-d.quit:
			return false
		}

	default:
		d.failed.Add(1)
		d.result("failed")
		d.log.WithError(err).WithField("identity", msg.Identity).Warn("Failed to send notification")
		return true
	}
}

func (d *Dispatcher) result(outcome string) {
	if d.OnResult != nil {
		d.OnResult(outcome)
	}
}

// Stats holds dispatcher counters
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
}

// Stats returns the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
		Pending: len(d.queue),
	}
}
