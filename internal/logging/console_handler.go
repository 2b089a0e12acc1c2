package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"
)

const infoAttrLimit = 6

// infoHighlightKeys are shown first, in this order, on INFO and above.
var infoHighlightKeys = []string{
	FieldOutcome,
	FieldReason,
	FieldEventType,
	"error",
	FieldErrorHint,
	FieldImpact,
	"files",
	"valid",
	"failed",
	"duration",
}

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := collectAttrs(h.attrs, h.groups, record)
	kvs, component := takeAttr(kvs, FieldComponent)
	kvs, batchID := takeAttr(kvs, FieldBatchID)
	kvs, file := takeAttr(kvs, FieldFile)

	var buf bytes.Buffer
	buf.Grow(256 + len(kvs)*32)
	buf.WriteString(formatTimestamp(timestamp))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if subject := composeSubject(batchID, file); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	buf.WriteString(" - ")
	if record.Message != "" {
		buf.WriteString(record.Message)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('\n')

	shown, hidden := kvs, 0
	if record.Level >= slog.LevelInfo {
		shown, hidden = selectInfoFields(kvs, infoAttrLimit)
	}
	for _, item := range shown {
		buf.WriteString("    - ")
		buf.WriteString(item.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(item.value))
		buf.WriteByte('\n')
	}
	if hidden > 0 {
		buf.WriteString("    + ")
		buf.WriteString(strconv.Itoa(hidden))
		buf.WriteString(" more field")
		if hidden != 1 {
			buf.WriteByte('s')
		}
		buf.WriteString(" hidden\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// selectInfoFields puts highlighted keys first and truncates to limit.
func selectInfoFields(kvs []kv, limit int) ([]kv, int) {
	ordered := make([]kv, 0, len(kvs))
	for _, key := range infoHighlightKeys {
		for _, item := range kvs {
			if item.key == key {
				ordered = append(ordered, item)
			}
		}
	}
	for _, item := range kvs {
		if !slices.Contains(infoHighlightKeys, item.key) {
			ordered = append(ordered, item)
		}
	}
	if len(ordered) <= limit {
		return ordered, 0
	}
	return ordered[:limit], len(ordered) - limit
}

// composeSubject renders "Batch 1a2b3c4d (report.txt)" style subjects.
func composeSubject(batchID, file string) string {
	if len(batchID) > 8 {
		batchID = batchID[:8]
	}
	switch {
	case batchID != "" && file != "":
		return "Batch " + batchID + " (" + file + ")"
	case batchID != "":
		return "Batch " + batchID
	default:
		return file
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     slices.Clone(h.attrs),
		groups:    slices.Clone(h.groups),
	}
}
