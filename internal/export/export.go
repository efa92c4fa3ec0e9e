// Package export writes conversation transcripts to disk as markdown.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"omnibot-console/internal/api"
)

type Exporter struct {
	overrideDir string
	cwd         string
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd}, nil
}

// Export writes the transcript for conv and returns the file path.
func (e *Exporter) Export(conv api.Conversation, messages []api.Message) (string, error) {
	path := e.outputPath(conv)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	md := BuildConversationMarkdown(conv, messages, time.Now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func (e *Exporter) outputPath(conv api.Conversation) string {
	dir := e.overrideDir
	if dir == "" {
		dir = filepath.Join(e.cwd, "exports", "conversations")
	}
	name := fmt.Sprintf("%s-%s.md", slug(conv.Contact), conv.ID)
	return filepath.Join(dir, name)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "conversation"
	}
	return s
}

// BuildConversationMarkdown renders one conversation as markdown: a
// metadata header followed by a section per message.
func BuildConversationMarkdown(conv api.Conversation, messages []api.Message, exportedAt time.Time) string {
	var b strings.Builder
	b.WriteString("# Conversation " + conv.ID + "\n\n")
	b.WriteString("- Contact: " + conv.Contact + "\n")
	b.WriteString("- Channel: " + conv.Channel + "\n")
	b.WriteString("- Bot: " + conv.BotID + "\n")
	b.WriteString("- Exported: " + exportedAt.Format(time.RFC3339) + "\n\n")

	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		b.WriteString("## " + senderHeading(m.Sender))
		if !m.CreatedAt.IsZero() {
			b.WriteString(" — " + m.CreatedAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n\n")
		b.WriteString(content + "\n\n")
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func senderHeading(sender string) string {
	switch sender {
	case "contact":
		return "Contact"
	case "bot":
		return "Bot"
	case "agent":
		return "Agent"
	case "":
		return "Unknown"
	default:
		return strings.ToUpper(sender[:1]) + sender[1:]
	}
}
