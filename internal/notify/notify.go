package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

const timeLayout = "2006-01-02 15:04"

// Publisher 是发布邮件消息用到的 amqp 方法，*amqp.Channel 满足这个接口
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Notifier struct {
	publisher Publisher
	queue     string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, queue string, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		queue:     queue,
		timeout:   timeout,
		logger:    logger,
	}
}

// Messages 为排班结果中的每位医生生成一封排班通知邮件，没有邮箱的医生会被跳过
func Messages(run *domain.ScheduleRun, catalog *scheduler.Catalog) []domain.MailMessage {
	bySurgeon := lo.GroupBy(run.Assignments, func(a domain.Assignment) int64 { return catalog.SurgeonFor(a) })

	surgeonIDs := lo.Keys(bySurgeon)
	sort.Slice(surgeonIDs, func(i, j int) bool { return surgeonIDs[i] < surgeonIDs[j] })

	messages := make([]domain.MailMessage, 0, len(surgeonIDs))
	for _, surgeonID := range surgeonIDs {
		surgeon, ok := catalog.Surgeon(surgeonID)
		if !ok || surgeon.Email == "" {
			continue
		}

		assignments := bySurgeon[surgeonID]
		sort.Slice(assignments, func(i, j int) bool { return assignments[i].StartTime.Before(assignments[j].StartTime) })

		messages = append(messages, domain.MailMessage{
			Type: domain.MailTypeSchedulePublished,
			To:   surgeon.Email,
			Data: domain.ScheduleMailData{
				FullName:    surgeon.FullName,
				WindowStart: run.WindowStart.Format(timeLayout),
				WindowEnd:   run.WindowEnd.Format(timeLayout),
				Items: lo.Map(assignments, func(a domain.Assignment, _ int) domain.ScheduleMailItem {
					return mailItem(a, catalog)
				}),
			},
		})
	}

	return messages
}

func mailItem(a domain.Assignment, catalog *scheduler.Catalog) domain.ScheduleMailItem {
	item := domain.ScheduleMailItem{
		Start: a.StartTime.Format(timeLayout),
		End:   a.EndTime.Format(timeLayout),
	}
	if surgery, ok := catalog.Surgery(a.SurgeryID); ok {
		item.Surgery = surgery.Name
	}
	if room, ok := catalog.Room(a.RoomID); ok {
		item.Room = room.Name
	}
	return item
}

// Publish 把排班通知发布到邮件队列，返回成功发布的消息数量
func (n *Notifier) Publish(ctx context.Context, run *domain.ScheduleRun, catalog *scheduler.Catalog) (int, error) {
	published := 0
	for _, message := range Messages(run, catalog) {
		body, err := json.Marshal(message)
		if err != nil {
			return published, err
		}

		publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
		err = n.publisher.PublishWithContext(
			publishCtx,
			"",
			n.queue,
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        body,
			},
		)
		cancel()
		if err != nil {
			return published, err
		}

		n.logger.Debug("已发布排班通知", slog.String("to", message.To))
		published++
	}

	return published, nil
}
