package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StreamConversation subscribes to the server-sent event stream for one
// conversation. Events arrive on the returned channel until the stream
// ends or ctx is cancelled; the channel is closed either way. Cancelling
// ctx is the release path for a view that navigates away.
func (c *Client) StreamConversation(ctx context.Context, conversationID string) (<-chan StreamEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/conversations/"+conversationID+"/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if tok, ok := c.token(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("stream %s: %w (%d)", conversationID, ErrStatus, resp.StatusCode)
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		var event, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "":
				// Blank line terminates one SSE frame.
				if data == "" {
					continue
				}
				ev := StreamEvent{Event: event}
				if err := json.Unmarshal([]byte(data), &ev.Message); err != nil {
					event, data = "", ""
					continue
				}
				if ev.Event == "" {
					ev.Event = "message"
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				event, data = "", ""
			}
		}
	}()
	return out, nil
}
