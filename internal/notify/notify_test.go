package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

type fakePublisher struct {
	keys     []string
	messages []amqp.Publishing
	err      error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.messages = append(f.messages, msg)
	return nil
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func testCatalog(t *testing.T) *scheduler.Catalog {
	t.Helper()

	catalog, err := scheduler.NewCatalog(&scheduler.CatalogInput{
		Surgeries: []*domain.Surgery{
			{ID: 1, Name: "阑尾切除术", TypeID: 1, DurationMinutes: 60, SurgeonID: 100, Urgency: domain.UrgencyHigh},
			{ID: 2, Name: "疝修补术", TypeID: 1, DurationMinutes: 45, SurgeonID: 100, Urgency: domain.UrgencyLow},
			{ID: 3, Name: "清创术", TypeID: 2, DurationMinutes: 30, SurgeonID: 200, Urgency: domain.UrgencyLow},
		},
		Rooms: []*domain.OperatingRoom{
			{ID: 10, Name: "1 号手术室", OperationalStartTime: "08:00:00"},
		},
		Surgeons: []*domain.Surgeon{
			{ID: 100, FullName: "王伟", Email: "wangwei@example.com", IsActive: true},
			{ID: 200, FullName: "李娜", IsActive: true},
		},
	})
	require.NoError(t, err)
	return catalog
}

func testRun() *domain.ScheduleRun {
	return &domain.ScheduleRun{
		ID:          "run-1",
		WindowStart: at(8, 0),
		WindowEnd:   at(18, 0),
		Assignments: []domain.Assignment{
			{SurgeryID: 2, RoomID: 10, StartTime: at(10, 0), EndTime: at(10, 45)},
			{SurgeryID: 1, RoomID: 10, StartTime: at(8, 30), EndTime: at(9, 30)},
			{SurgeryID: 3, RoomID: 10, StartTime: at(11, 30), EndTime: at(12, 0)},
		},
	}
}

func TestMessagesGroupBySurgeon(t *testing.T) {
	messages := Messages(testRun(), testCatalog(t))

	// 李娜没有邮箱，不会收到通知
	require.Len(t, messages, 1)
	assert.Equal(t, domain.MailTypeSchedulePublished, messages[0].Type)
	assert.Equal(t, "wangwei@example.com", messages[0].To)

	data := messages[0].Data.(domain.ScheduleMailData)
	assert.Equal(t, "王伟", data.FullName)
	assert.Equal(t, "2025-03-10 08:00", data.WindowStart)
	assert.Equal(t, []domain.ScheduleMailItem{
		{Surgery: "阑尾切除术", Room: "1 号手术室", Start: "2025-03-10 08:30", End: "2025-03-10 09:30"},
		{Surgery: "疝修补术", Room: "1 号手术室", Start: "2025-03-10 10:00", End: "2025-03-10 10:45"},
	}, data.Items)
}

func TestPublishSendsJSONToQueue(t *testing.T) {
	publisher := &fakePublisher{}
	notifier := NewNotifier(publisher, "email_queue", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := notifier.Publish(context.Background(), testRun(), testCatalog(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"email_queue"}, publisher.keys)

	var message domain.MailMessage
	require.NoError(t, json.Unmarshal(publisher.messages[0].Body, &message))
	assert.Equal(t, "application/json", publisher.messages[0].ContentType)
	assert.Equal(t, domain.MailTypeSchedulePublished, message.Type)
	assert.Equal(t, "wangwei@example.com", message.To)
}

func TestPublishStopsOnError(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("channel closed")}
	notifier := NewNotifier(publisher, "email_queue", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := notifier.Publish(context.Background(), testRun(), testCatalog(t))
	assert.ErrorIs(t, err, publisher.err)
	assert.Zero(t, n)
}
