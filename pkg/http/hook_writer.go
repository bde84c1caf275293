package http

import (
	"net/http"
	"sync"
)

// HookWriter runs a callback exactly once, right before the response header
// is committed, so middleware can still add headers and cookies after the
// downstream handler has run its logic.
type HookWriter struct {
	http.ResponseWriter
	once   sync.Once
	before func()
}

// NewHookWriter wraps w; before is invoked on the first WriteHeader or Write.
func NewHookWriter(w http.ResponseWriter, before func()) *HookWriter {
	return &HookWriter{ResponseWriter: w, before: before}
}

func (h *HookWriter) fire() {
	h.once.Do(h.before)
}

func (h *HookWriter) WriteHeader(statusCode int) {
	h.fire()
	h.ResponseWriter.WriteHeader(statusCode)
}

func (h *HookWriter) Write(data []byte) (int, error) {
	h.fire()
	return h.ResponseWriter.Write(data)
}

// Flush implements http.Flusher when the wrapped writer supports it
func (h *HookWriter) Flush() {
	h.fire()
	if f, ok := h.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Finish runs the hook if the handler never wrote anything.
func (h *HookWriter) Finish() {
	h.fire()
}

// Unwrap exposes the underlying writer to http.ResponseController
func (h *HookWriter) Unwrap() http.ResponseWriter {
	return h.ResponseWriter
}
