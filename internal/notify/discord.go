package notify

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Embed colours: red for failures, green otherwise.
const (
	discordColorOK   = 0x2ecc71
	discordColorFail = 0xe74c3c
)

// DiscordSender posts notices to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     defaultHTTPClient(),
		now:        time.Now,
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send posts the notice. Discord answers 204.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	color := discordColorOK
	if strings.Contains(strings.ToLower(title), "fail") {
		color = discordColorFail
	}
	return postJSON(ctx, d.client, d.Name(), d.webhookURL, discordPayload{
		Username: "genmarket",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       color,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
}

func (d *DiscordSender) Name() string { return "discord" }
