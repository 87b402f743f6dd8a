package notify

import (
	"context"
	"encoding/json"
	"time"

	"busline/internal/utils"
)

// Task kinds consumed by downstream workers.
const (
	TaskSMS      = "sms.send"
	TaskAlert    = "trip.alert"
	TaskManifest = "manifest.generate"
)

// Task is one fire-and-forget side-effect job: an SMS, a low-slot alert or a
// manifest generation request.
type Task struct {
	Kind      string         `json:"kind"`
	TripID    int64          `json:"trip_id,omitempty"`
	BookingID int64          `json:"booking_id,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Message   string         `json:"message,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Publisher delivers tasks to the side-effect queue.
type Publisher interface {
	Publish(ctx context.Context, task Task) error
}

// LogPublisher is the fallback when no broker is configured: tasks are
// logged and dropped.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, task Task) error {
	raw, _ := json.Marshal(task)
	utils.LogEvent("", "notify", task.Kind, string(raw))
	return nil
}

// Notifier dispatches side effects after booking commits and during the
// reconciliation sweep. Every method is best-effort: publish errors are
// logged and never surfaced, so collaborator latency or failure can never
// corrupt or fail a booking.
type Notifier struct {
	Pub Publisher
}

func (n Notifier) pub() Publisher {
	if n.Pub != nil {
		return n.Pub
	}
	return LogPublisher{}
}

func (n Notifier) dispatch(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.pub().Publish(ctx, task); err != nil {
		utils.LogError("", "notify", task.Kind, err)
	}
}

// Dispatch publishes a batch of tasks asynchronously. Used right after a
// booking transaction commits.
func (n Notifier) Dispatch(tasks []Task) {
	for _, task := range tasks {
		t := task
		go n.dispatch(t)
	}
}

// SendSMS queues one customer message.
func (n Notifier) SendSMS(phone, message string) {
	if phone == "" {
		return
	}
	go n.dispatch(Task{Kind: TaskSMS, Phone: phone, Message: message})
}
