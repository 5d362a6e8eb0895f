package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/signal42/campaign-agent/internal/httpkit"
)

// SlackChannel posts campaign updates to a Slack incoming webhook using
// Block Kit layout.
type SlackChannel struct {
	webhookURL  string
	channelName string
	httpClient  *http.Client
}

// NewSlackChannel creates a Slack webhook channel. channelName is
// informational only; incoming webhooks are bound to a channel at
// creation time.
func NewSlackChannel(webhookURL, channelName string) *SlackChannel {
	return &SlackChannel{
		webhookURL:  webhookURL,
		channelName: channelName,
		httpClient:  httpkit.DefaultClient(),
	}
}

// Name implements Channel.
func (c *SlackChannel) Name() string { return "slack" }

// Send implements Channel.
func (c *SlackChannel) Send(ctx context.Context, u Update) error {
	blocks := c.buildBlocks(u)
	msg := &slack.WebhookMessage{
		Text:   fmt.Sprintf("Campaign update: %s (%s)", u.Brand, u.MediaBuyID),
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, c.webhookURL, c.httpClient, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

func (c *SlackChannel) buildBlocks(u Update) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("Campaign update: %s", u.Brand), false, false),
	)

	summary := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf(
			"*%s* — status `%s`, pacing `%s`, health `%s`\nBudget $%.2f, spend $%.2f",
			u.MediaBuyID, u.Status, u.Pacing, u.Health, u.TotalBudget, u.TotalSpend,
		), false, false),
		nil, nil,
	)

	var lines []string
	for _, ch := range u.Changes {
		lines = append(lines, fmt.Sprintf("• %s\n    _%s_", changeLine(ch), reasonFor(ch.Operation)))
	}
	changesBlock := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, "*What changed*\n"+strings.Join(lines, "\n"), false, false),
		nil, nil,
	)

	blocks := []slack.Block{header, summary, changesBlock}

	if u.Impact.Description != "" {
		impact := u.Impact.Description
		if u.Impact.EfficiencyImprovement != "" {
			impact += " " + u.Impact.EfficiencyImprovement + "."
		}
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, "Estimated impact: "+impact, false, false),
		))
	}

	if u.DashboardURL != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf(
				"<%s/campaigns/%s|Open dashboard>", strings.TrimRight(u.DashboardURL, "/"), u.MediaBuyID,
			), false, false),
		))
	}

	return blocks
}
