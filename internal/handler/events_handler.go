package handler

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
)

type EventsHandler struct {
	events *broadcast.Broadcaster
}

func NewEventsHandler(events *broadcast.Broadcaster) *EventsHandler {
	return &EventsHandler{events: events}
}

// Stream handles GET /events as a server-sent event stream. The
// connection closes when the client goes away.
func (h *EventsHandler) Stream(c *gin.Context) {
	ch, cancel := h.events.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			data, err := json.Marshal(evt.Data)
			if err != nil {
				return true
			}
			c.SSEvent(evt.Type, string(data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
