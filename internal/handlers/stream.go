package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ollama-bridge/internal/providers"
)

// streamCompletion runs the NDJSON streaming path. Its life is a straight
// line: headers are committed before the first delta is known, each upstream
// delta becomes exactly one done:false line in arrival order, and exactly one
// done:true line ends the stream — carrying the echoed context and reasoning
// on success, or an error field when the upstream failed mid-stream. After
// the final line the connection closes; there is no retry transition.
func (a *API) streamCompletion(w http.ResponseWriter, r *http.Request, adapter providers.Provider, c call) {
	st, err := adapter.Stream(r.Context(), c.entry.Model, c.msgs, c.opts)
	if err != nil {
		// Nothing committed yet: the clean error envelope still applies.
		a.jsonError(w, err)
		return
	}
	defer st.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	sw := newStreamWriter(w)
	start := time.Now()

	var output strings.Builder

	for {
		delta, err := st.Recv()
		if errors.Is(err, io.EOF) {
			sw.writeLine(a.finalChunk(c, st.Reasoning(), output.String(), start))
			return
		}

		if err != nil {
			a.logger.Error("upstream stream failed", "provider", c.entry.Provider, "error", err)
			sw.writeLine(map[string]any{
				"model":      c.public,
				"created_at": time.Now().UTC().Format(time.RFC3339Nano),
				"done":       true,
				"error":      err.Error(),
			})

			return
		}

		output.WriteString(delta)
		sw.writeLine(a.deltaChunk(c, delta))
	}
}

func (a *API) deltaChunk(c call, delta string) map[string]any {
	chunk := map[string]any{
		"model":      c.public,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		"done":       false,
	}

	if c.chat {
		chunk["message"] = map[string]any{
			"role":    providers.RoleAssistant,
			"content": delta,
		}
	} else {
		chunk["response"] = delta
	}

	return chunk
}

func (a *API) finalChunk(c call, reasoning, output string, start time.Time) map[string]any {
	chunk := map[string]any{
		"model":             c.public,
		"created_at":        time.Now().UTC().Format(time.RFC3339Nano),
		"done":              true,
		"done_reason":       "stop",
		"total_duration":    time.Since(start).Nanoseconds(),
		"prompt_eval_count": a.counter.CountMessages(c.msgs),
		"eval_count":        a.counter.Count(output),
	}

	if c.chat {
		msg := map[string]any{
			"role":    providers.RoleAssistant,
			"content": "",
		}
		if reasoning != "" {
			msg["reasoning"] = reasoning
		}

		chunk["message"] = msg
	} else {
		chunk["response"] = ""
		if reasoning != "" {
			chunk["reasoning"] = reasoning
		}
	}

	if len(c.context) > 0 {
		chunk["context"] = c.context
	}

	return chunk
}

// streamWriter emits one JSON value per line and flushes after each, so the
// consumer sees every delta as soon as it exists.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	sw := &streamWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}

	return sw
}

func (sw *streamWriter) writeLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	sw.w.Write(append(data, '\n'))

	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}
