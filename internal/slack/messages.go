package slack

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/prite36/smart-irrigation/internal/models"
)

var actionTitles = map[models.Action]string{
	models.ActionAIAutoStart:        ":robot_face: Automatic irrigation started",
	models.ActionManualStart:        ":droplet: Manual irrigation started",
	models.ActionManualStop:         ":octagonal_sign: Irrigation stopped",
	models.ActionPausedDueToRain:    ":rain_cloud: Irrigation paused for rain",
	models.ActionResumedAfterRain:   ":sun_behind_rain_cloud: Irrigation resumed after rain",
	models.ActionCancelledAfterRain: ":white_check_mark: Irrigation cancelled after rain",
}

// NewInfoMessage builds a header plus text message.
func NewInfoMessage(title, text string) slack.MsgOption {
	return slack.MsgOptionBlocks(infoBlocks(title, text)...)
}

func ActionMessage(entry models.LogEntry) slack.MsgOption {
	return slack.MsgOptionBlocks(actionBlocks(entry)...)
}

func infoBlocks(title, text string) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
}

func actionBlocks(entry models.LogEntry) []slack.Block {
	title, ok := actionTitles[entry.Action]
	if !ok {
		title = string(entry.Action)
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Action:*\n%s", entry.Action), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Time:*\n%s", entry.Timestamp.Format("2006-01-02 15:04:05")), false, false),
	}
	if entry.Duration > 0 {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Duration:*\n%d min", entry.Duration), false, false))
	}
	if entry.SoilMoisture != nil {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Soil moisture:*\n%.1f%%", *entry.SoilMoisture), false, false))
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}
	if entry.Reason != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, entry.Reason, false, false)))
	}
	return blocks
}
