package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"

	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/metrics"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/store"
)

// Notifier queues a best-effort message for a user.
type Notifier interface {
	Notify(userID, subject, body string)
}

// Message is a notification addressed to one user.
type Message struct {
	UserID  string
	Subject string
	Body    string
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers queued messages by email and web push.
type WorkerPool struct {
	size    int
	jobs    chan Message
	store   store.Store
	mailer  Mailer
	sender  NotificationSender
	webpush *webpush.Options
	log     logger.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. A nil mailer disables email and nil
// webpush options disable push delivery.
func NewWorkerPool(size, queueSize int, s store.Store, mailer Mailer, webpushOptions *webpush.Options, log logger.Logger, m *metrics.Metrics) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Message, queueSize),
		store:   s,
		mailer:  mailer,
		sender:  &WebPushSender{},
		webpush: webpushOptions,
		log:     log,
		metrics: m,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.log.Debug("notification worker started", "worker", id)
	for {
		select {
		case msg := <-wp.jobs:
			wp.deliver(ctx, msg)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Notify queues a message without blocking. When the queue is full the
// message is dropped.
func (wp *WorkerPool) Notify(userID, subject, body string) {
	wp.Dispatch(Message{UserID: userID, Subject: subject, Body: body})
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(msg Message) {
	select {
	case wp.jobs <- msg:
	default:
		wp.metrics.NotificationsDropped.Inc()
		wp.log.Warn("notification queue full, dropping message", "user_id", msg.UserID, "subject", msg.Subject)
	}
}

func (wp *WorkerPool) deliver(ctx context.Context, msg Message) {
	user, err := wp.store.GetUser(ctx, msg.UserID)
	if err != nil {
		wp.log.Error("failed to load notification recipient", "user_id", msg.UserID, "error", err)
		return
	}

	if wp.mailer != nil && user.ContactEmail() != "" {
		if err := wp.mailer.SendEmail(user.ContactEmail(), msg.Subject, msg.Body); err != nil {
			wp.metrics.NotificationsFailed.WithLabelValues("email").Inc()
			wp.log.Error("failed to send email", "user_id", user.ID, "error", err)
		} else {
			wp.metrics.NotificationsSent.WithLabelValues("email").Inc()
		}
	}

	wp.sendPush(ctx, user, msg)
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (wp *WorkerPool) sendPush(ctx context.Context, user *model.User, msg Message) {
	if wp.webpush == nil || wp.webpush.VAPIDPrivateKey == "" {
		return
	}

	subscriptions, err := wp.store.ListSubscriptionsByUser(ctx, user.ID)
	if err != nil {
		wp.log.Error("failed to fetch push subscriptions", "user_id", user.ID, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{Title: msg.Subject, Body: msg.Body})
	if err != nil {
		wp.log.Error("failed to encode push payload", "error", err)
		return
	}
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.NotificationsFailed.WithLabelValues("push").Inc()
		wp.log.Error("failed to send push notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are removed.
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("push subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.store.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
		return
	}
	if resp.StatusCode >= 300 {
		wp.metrics.NotificationsFailed.WithLabelValues("push").Inc()
		wp.log.Warn("push service rejected notification", "endpoint", sub.Endpoint, "status", resp.StatusCode)
		return
	}
	wp.metrics.NotificationsSent.WithLabelValues("push").Inc()
}
