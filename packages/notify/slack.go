package notify

import (
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "pagespec",
		iconEmoji:  ":performing_arts:",
		client:     newWebhookClient(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

// slackMessage represents a Slack webhook message
type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// slackAttachment represents a Slack message attachment
type slackAttachment struct {
	Color      string       `json:"color"`
	Title      string       `json:"title"`
	Text       string       `json:"text,omitempty"`
	Fields     []slackField `json:"fields,omitempty"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	TS         int64        `json:"ts,omitempty"`
}

// slackField represents a field in a Slack attachment
type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(summary *RunSummary) error {
	color := "good" // green
	emoji := ":white_check_mark:"

	if summary.FailedScenarios > 0 {
		color = "danger" // red
		emoji = ":x:"
	} else if summary.IsRecovery {
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Scenarios", Value: fmt.Sprintf("%d", summary.TotalScenarios), Short: true},
		{Title: "Passed", Value: fmt.Sprintf("%d", summary.PassedScenarios), Short: true},
		{Title: "Failed", Value: fmt.Sprintf("%d", summary.FailedScenarios), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if summary.FlakyScenarios > 0 {
		fields = append(fields, slackField{Title: "Flaky", Value: fmt.Sprintf("%d", summary.FlakyScenarios), Short: true})
	}
	if summary.SkippedScenarios > 0 {
		fields = append(fields, slackField{Title: "Skipped", Value: fmt.Sprintf("%d", summary.SkippedScenarios), Short: true})
	}

	if summary.BaseURL != "" {
		fields = append(fields, slackField{
			Title: "Base URL",
			Value: summary.BaseURL,
			Short: true,
		})
	}

	// Add failed scenario details if any
	var text string
	if len(summary.Failed) > 0 {
		text = "*Failed scenarios:*\n"
		for _, fs := range summary.Failed {
			text += fmt.Sprintf("• `%s` [%s]", fs.Name, fs.Kind)
			if fs.File != "" {
				text += fmt.Sprintf(" (%s)", fs.File)
			}
			if fs.Attempts > 1 {
				text += fmt.Sprintf(", %d attempts", fs.Attempts)
			}
			text += "\n"
			if fs.Error != "" {
				text += fmt.Sprintf("  - %s\n", fs.Error)
			}
		}
	}

	footer := "pagespec"
	if summary.RunID != "" {
		footer += " · run " + summary.RunID
	}

	attachment := slackAttachment{
		Color:  color,
		Title:  fmt.Sprintf("%s %s", emoji, headline(summary)),
		Text:   text,
		Fields: fields,
		Footer: footer,
		TS:     time.Now().Unix(),
	}

	msg := slackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   s.iconEmoji,
		Attachments: []slackAttachment{attachment},
	}

	return s.send(msg)
}

func (s *SlackNotifier) send(msg slackMessage) error {
	return postJSON(s.client, "Slack", s.webhookURL, msg, http.StatusOK)
}
