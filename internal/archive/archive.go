// Package archive writes raw webhook payloads to disk for later inspection.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Archiver saves each raw webhook body under <dir>/YYYY-MM-DD/<messageId>.json.
// Archival is best effort: failures are logged and never propagated, and a
// nil Archiver (or empty dir) disables it entirely.
type Archiver struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Archiver {
	if dir == "" {
		return nil
	}
	return &Archiver{dir: dir, logger: logger.With("component", "archive")}
}

// Save writes the payload. The filename is the first message id found in the
// envelope, falling back to a timestamp when the payload has none.
func (a *Archiver) Save(body []byte) {
	if a == nil {
		return
	}

	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(a.dir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Error("cannot create archive directory", "dir", dir, "err", err)
		return
	}

	name := probeMessageID(body)
	if name == "" {
		name = fmt.Sprintf("unknown-%d", time.Now().UnixMilli())
	}

	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		a.logger.Error("cannot archive webhook payload", "path", path, "err", err)
	}
}

// probeMessageID digs entry[0].changes[0].value.messages[0].id out of the
// payload without requiring the envelope to be well formed.
func probeMessageID(body []byte) string {
	var probe struct {
		Entry []struct {
			Changes []struct {
				Value struct {
					Messages []struct {
						ID string `json:"id"`
					} `json:"messages"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	if len(probe.Entry) == 0 || len(probe.Entry[0].Changes) == 0 {
		return ""
	}
	msgs := probe.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return ""
	}
	return sanitize(msgs[0].ID)
}

// sanitize keeps the id filesystem-safe.
func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '=':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
