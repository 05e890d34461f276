package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const MailTypeSchedulePublished = "schedule_published"

type ScheduleMailData struct {
	FullName    string             `json:"fullName"`
	WindowStart string             `json:"windowStart"`
	WindowEnd   string             `json:"windowEnd"`
	Items       []ScheduleMailItem `json:"items"`
}

type ScheduleMailItem struct {
	Surgery string `json:"surgery"`
	Room    string `json:"room"`
	Start   string `json:"start"`
	End     string `json:"end"`
}
