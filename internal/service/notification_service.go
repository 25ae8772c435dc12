package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/pkg/jobs"
)

const (
	jobTypeEvent = "event"
	jobTypeEmail = "email"

	subjectBookingConfirmed = "Booking confirmed"
	subjectBookingCancelled = "Booking cancelled"
)

// Mailer delivers one email payload.
type Mailer interface {
	Send(ctx context.Context, payload models.EmailPayload) error
}

type messagePublisher interface {
	Publish(ctx context.Context, messageType string, body []byte) error
}

// AMQPMailer hands payloads to the mail worker queue as persistent JSON messages.
type AMQPMailer struct {
	publisher messagePublisher
}

// NewAMQPMailer wraps a broker publisher.
func NewAMQPMailer(publisher messagePublisher) *AMQPMailer {
	return &AMQPMailer{publisher: publisher}
}

// Send encodes the payload and publishes it under the event type.
func (m *AMQPMailer) Send(ctx context.Context, payload models.EmailPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}
	return m.publisher.Publish(ctx, string(payload.Event), body)
}

// LogMailer only logs what would have been sent.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the payload envelope.
func (m *LogMailer) Send(ctx context.Context, payload models.EmailPayload) error {
	m.logger.Info("email suppressed",
		zap.String("event", string(payload.Event)),
		zap.Strings("to", payload.To),
		zap.String("subject", payload.Subject),
		zap.Int("attachments", len(payload.Attachments)),
	)
	return nil
}

type recipientDirectory interface {
	Admins(ctx context.Context) ([]models.User, error)
}

type notificationRecorder interface {
	RecordNotification(event string, err error)
}

// NotificationOptions sizes the delivery queue.
type NotificationOptions struct {
	Workers    int
	BufferSize int
	Retries    int
	RetryDelay time.Duration
	SiteName   string
}

// NotificationService turns committed booking events into emails off the request path.
type NotificationService struct {
	directory recipientDirectory
	mailer    Mailer
	metrics   notificationRecorder
	queue     *jobs.Queue
	siteName  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService builds the service and its queue. Call Start before publishing.
func NewNotificationService(directory recipientDirectory, mailer Mailer, metrics notificationRecorder, opts NotificationOptions, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SiteName == "" {
		opts.SiteName = "Advising"
	}
	s := &NotificationService{
		directory: directory,
		mailer:    mailer,
		metrics:   metrics,
		siteName:  opts.SiteName,
		logger:    logger,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    opts.Workers,
		BufferSize: opts.BufferSize,
		MaxRetries: opts.Retries,
		RetryDelay: opts.RetryDelay,
		Logger:     logger,
		OnGiveUp:   s.giveUp,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queued deliveries and stops the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish schedules delivery for an event. It never blocks and never fails the caller.
func (s *NotificationService) Publish(ctx context.Context, event models.Event) {
	if event.Booking == nil {
		s.logger.Debug("event has no recipients", zap.String("event", string(event.Type)))
		return
	}
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeEvent, Payload: event})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("event", string(event.Type)),
			zap.String("booking_id", event.Booking.ID),
			zap.Error(err),
		)
		s.record(event.Type, err)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeEvent:
		event, ok := job.Payload.(models.Event)
		if !ok {
			return nil
		}
		return s.fanOut(ctx, event)
	case jobTypeEmail:
		payload, ok := job.Payload.(models.EmailPayload)
		if !ok {
			return nil
		}
		return s.deliver(ctx, payload)
	default:
		s.logger.Warn("unknown notification job", zap.String("type", job.Type))
		return nil
	}
}

func (s *NotificationService) deliver(ctx context.Context, payload models.EmailPayload) error {
	err := s.mailer.Send(ctx, payload)
	if err == nil {
		s.record(payload.Event, nil)
	}
	return err
}

// fanOut resolves recipients and queues one email job per address so retries never resend
// to recipients that already received the message. When the queue is full or draining the
// email is sent once inline.
func (s *NotificationService) fanOut(ctx context.Context, event models.Event) error {
	payloads, err := s.BuildEmails(ctx, event)
	if err != nil {
		return err
	}
	for _, payload := range payloads {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeEmail, Payload: payload}); err == nil {
			continue
		}
		if err := s.deliver(ctx, payload); err != nil {
			s.logger.Error("failed to send email", zap.Strings("to", payload.To), zap.Error(err))
			s.record(payload.Event, err)
		}
	}
	return nil
}

func (s *NotificationService) giveUp(job jobs.Job, err error) {
	switch payload := job.Payload.(type) {
	case models.EmailPayload:
		s.record(payload.Event, err)
	case models.Event:
		s.record(payload.Type, err)
	}
}

func (s *NotificationService) record(event models.EventType, err error) {
	if s.metrics != nil {
		s.metrics.RecordNotification(string(event), err)
	}
}

// BuildEmails renders one payload per recipient: the student, the teacher and every admin.
func (s *NotificationService) BuildEmails(ctx context.Context, event models.Event) ([]models.EmailPayload, error) {
	detail := event.Booking
	if detail == nil {
		return nil, nil
	}

	var subject, headline string
	cancelled := false
	switch event.Type {
	case models.EventBookingCreated:
		subject, headline = subjectBookingConfirmed, "An advising session has been booked."
	case models.EventBookingCancelled:
		subject, headline = subjectBookingCancelled, "An advising session has been cancelled."
		cancelled = true
	default:
		return nil, nil
	}

	recipients, err := s.recipients(ctx, *detail)
	if err != nil {
		return nil, err
	}

	attachment := models.EmailAttachment{
		Filename:    "advising-session.ics",
		ContentType: icsContentType,
		Content:     BuildBookingICS(*detail, s.now(), cancelled),
	}

	payloads := make([]models.EmailPayload, 0, len(recipients))
	for _, user := range recipients {
		payloads = append(payloads, models.EmailPayload{
			Event:       event.Type,
			To:          []string{user.Email},
			Subject:     subject,
			Body:        s.body(user, headline, *detail, event.Reason),
			Attachments: []models.EmailAttachment{attachment},
		})
	}
	return payloads, nil
}

func (s *NotificationService) recipients(ctx context.Context, detail models.BookingDetail) ([]models.User, error) {
	seen := make(map[string]struct{})
	var out []models.User
	add := func(u models.User) {
		if u.Email == "" {
			return
		}
		key := strings.ToLower(u.Email)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}

	add(models.User{ID: detail.StudentID, Email: detail.StudentEmail, FullName: detail.StudentName, Role: models.RoleStudent})
	add(models.User{ID: detail.TeacherID, Email: detail.TeacherEmail, FullName: detail.TeacherName, Role: models.RoleTeacher})

	admins, err := s.directory.Admins(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve admins: %w", err)
	}
	for _, admin := range admins {
		add(admin)
	}
	return out, nil
}

func (s *NotificationService) body(to models.User, headline string, detail models.BookingDetail, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n%s\n\n", to.DisplayName(), headline)
	fmt.Fprintf(&b, "Date: %s\n", detail.Date)
	fmt.Fprintf(&b, "Time: %s - %s (UTC)\n", detail.StartTime, detail.EndTime)
	fmt.Fprintf(&b, "Mode: %s\n", detail.MeetingMode.Label())
	fmt.Fprintf(&b, "Student: %s\n", firstNonEmpty(detail.StudentName, detail.StudentEmail))
	fmt.Fprintf(&b, "Advisor: %s\n", firstNonEmpty(detail.TeacherName, detail.TeacherEmail))
	if detail.Note != "" {
		fmt.Fprintf(&b, "Advisor note: %s\n", detail.Note)
	}
	if detail.Message != "" {
		fmt.Fprintf(&b, "Student note: %s\n", detail.Message)
	}
	if reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", reason)
	}
	fmt.Fprintf(&b, "\n%s\n", s.siteName)
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
