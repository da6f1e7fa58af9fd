// Package handlers implements the HTTP surface of the bridge and the
// translation from provider results back into the local API's envelopes.
package handlers

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ollama-bridge/internal/message"
	"ollama-bridge/internal/providers"
	"ollama-bridge/internal/registry"
)

// API is the composition point for one running bridge: registry, active
// adapters, normalizer and token counter are all initialized once and only
// read per-request.
type API struct {
	registry   *registry.Registry
	adapters   providers.Set
	normalizer *message.Normalizer
	counter    *TokenCounter
	logger     *slog.Logger
	version    string
	started    time.Time
}

func NewAPI(reg *registry.Registry, adapters providers.Set, logger *slog.Logger, version string) *API {
	return &API{
		registry:   reg,
		adapters:   adapters,
		normalizer: message.NewNormalizer(logger),
		counter:    NewTokenCounter(),
		logger:     logger,
		version:    version,
		started:    time.Now().UTC(),
	}
}

// Root serves the liveness marker on exactly "/"; everything else that falls
// through the mux lands here and gets the 404 envelope.
func (a *API) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		a.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ollama-bridge is running",
		"status":  "ok",
	})
}

func (a *API) Version(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"version": a.version})
}

// Tags lists the registry entries whose provider is active. Credentials are
// only as fresh as startup; no live revalidation happens here.
func (a *API) Tags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.NotFound(w, r)
		return
	}

	entries := a.registry.Active()
	models := make([]TagEntry, 0, len(entries))

	for _, e := range entries {
		models = append(models, TagEntry{
			Name:       e.Name,
			Model:      e.Name,
			ModifiedAt: a.started.Format(time.RFC3339),
			Size:       0,
			Digest:     fmt.Sprintf("%x", sha256.Sum256([]byte(e.Name+":"+e.Model))),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (a *API) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.NotFound(w, r)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, fmt.Errorf("malformed request body: %w", err))
		return
	}

	entry, err := a.registry.Resolve(req.Model)
	if err != nil {
		a.jsonError(w, err)
		return
	}

	msgs, err := a.normalizer.Normalize(r.Context(), message.ChatShape(req.Messages))
	if err != nil {
		a.jsonError(w, err)
		return
	}

	a.dispatch(w, r, call{
		entry:   entry,
		msgs:    msgs,
		opts:    req.Options.provider(),
		public:  req.Model,
		chat:    true,
		context: req.Context,
		stream:  streamRequested(req.Stream),
	})
}

func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.NotFound(w, r)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, fmt.Errorf("malformed request body: %w", err))
		return
	}

	entry, err := a.registry.Resolve(req.Model)
	if err != nil {
		a.jsonError(w, err)
		return
	}

	msgs, err := a.normalizer.Normalize(r.Context(), message.GenerateShape(req.Prompt, req.Images))
	if err != nil {
		a.jsonError(w, err)
		return
	}

	a.dispatch(w, r, call{
		entry:   entry,
		msgs:    msgs,
		opts:    req.Options.provider(),
		public:  req.Model,
		chat:    false,
		context: req.Context,
		stream:  streamRequested(req.Stream),
	})
}

// call is one resolved generation request, ready for an adapter.
type call struct {
	entry   registry.Entry
	msgs    []providers.Message
	opts    providers.Options
	public  string
	chat    bool
	context json.RawMessage
	stream  bool
}

func (a *API) dispatch(w http.ResponseWriter, r *http.Request, c call) {
	adapter, ok := a.adapters.For(c.entry.Provider)
	if !ok {
		a.jsonError(w, fmt.Errorf("%w: %s", registry.ErrProviderUnavailable, c.entry.Provider))
		return
	}

	a.logger.Info("dispatching request",
		"model", c.public,
		"provider", c.entry.Provider,
		"upstream_model", c.entry.Model,
		"stream", c.stream,
		"messages", len(c.msgs),
	)

	if c.stream {
		a.streamCompletion(w, r, adapter, c)
		return
	}

	a.completion(w, r, adapter, c)
}

func (a *API) completion(w http.ResponseWriter, r *http.Request, adapter providers.Provider, c call) {
	start := time.Now()

	res, err := adapter.Complete(r.Context(), c.entry.Model, c.msgs, c.opts)
	if err != nil {
		a.jsonError(w, err)
		return
	}

	envelope := map[string]any{
		"model":             c.public,
		"created_at":        time.Now().UTC().Format(time.RFC3339Nano),
		"done":              true,
		"done_reason":       "stop",
		"total_duration":    time.Since(start).Nanoseconds(),
		"prompt_eval_count": a.counter.CountMessages(c.msgs),
		"eval_count":        a.counter.Count(res.Text),
	}

	if c.chat {
		msg := map[string]any{
			"role":    providers.RoleAssistant,
			"content": res.Text,
		}
		if res.Reasoning != "" {
			msg["reasoning"] = res.Reasoning
		}

		envelope["message"] = msg
	} else {
		envelope["response"] = res.Text
		if res.Reasoning != "" {
			envelope["reasoning"] = res.Reasoning
		}
	}

	if res.RawMessages != nil {
		envelope["messages"] = res.RawMessages
	}

	if len(c.context) > 0 {
		envelope["context"] = c.context
	}

	writeJSON(w, http.StatusOK, envelope)
}

// NotFound writes the 404 error envelope used for every unmatched
// method+path combination.
func (a *API) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

// jsonError maps any request-handling failure to the single-shot error
// envelope. Only valid while no output has been committed; the streaming
// path downgrades errors itself once headers are out.
func (a *API) jsonError(w http.ResponseWriter, err error) {
	a.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing useful left to do.
		_ = err
	}
}
