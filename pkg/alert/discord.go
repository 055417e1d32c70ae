package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, st := range n.top() {
		line := fmt.Sprintf("• **%s** (%d items)", st.Title, st.Items)
		if st.URL != "" {
			line = fmt.Sprintf("• [%s](%s) (%d items)", st.Title, st.URL, st.Items)
		}
		if st.Summary != "" {
			line += "\n  " + st.Summary
		}
		lines = append(lines, line)
	}

	description := n.Body
	if len(lines) > 0 {
		description += "\n\n" + strings.Join(lines, "\n")
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": description,
		"color":       0x3366FF,
		"timestamp":   d.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return post(ctx, d.client, d.webhookURL, body, nil, "discord webhook")
}
