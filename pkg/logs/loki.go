package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Alijeyrad/medvault_backend/config"
)

const (
	lokiPushPath = "/loki/api/v1/push"
	lokiTimeout  = 3 * time.Second
)

// Loki push API body.
type (
	lokiPush struct {
		Streams []lokiStream `json:"streams"`
	}
	lokiStream struct {
		Stream map[string]string `json:"stream"`
		Values [][2]string       `json:"values"`
	}
)

// lokiWriter sends every Write as one log line. slog handlers call Write
// once per record, so a record is never split across pushes.
type lokiWriter struct {
	url        string
	user, pass string
	labels     map[string]string
	http       *http.Client
}

func newLokiWriter(cfg *config.Config) *lokiWriter {
	lc := cfg.Logging.Output.Loki
	return &lokiWriter{
		url:  strings.TrimRight(lc.Endpoint, "/") + lokiPushPath,
		user: lc.Username,
		pass: lc.Password,
		labels: map[string]string{
			"service": cfg.Observability.ServiceName,
			"env":     cfg.Server.Environment,
		},
		http: &http.Client{Timeout: lokiTimeout},
	}
}

func (w *lokiWriter) Write(p []byte) (int, error) {
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	line := strings.TrimSuffix(string(p), "\n")
	body, err := json.Marshal(lokiPush{Streams: []lokiStream{{Stream: w.labels, Values: [][2]string{{ts, line}}}}})
	if err != nil {
		return 0, err
	}
	if err := w.push(body); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *lokiWriter) push(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), lokiTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.user != "" {
		req.SetBasicAuth(w.user, w.pass)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("loki push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki push: %s", resp.Status)
	}
	return nil
}
