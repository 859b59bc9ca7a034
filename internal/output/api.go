package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakopako/uiverify/internal/runner"
)

// APIWriter represents a writer that posts the report to a http endpoint,
// eg. the results api of a CI system.
type APIWriter struct {
	*WriterConfig
	client *http.Client
	logger *slog.Logger
}

// NewAPIWriter returns a new APIWriter
func NewAPIWriter(wc *WriterConfig) (*APIWriter, error) {
	if wc.Uri == "" {
		return nil, errors.New("uri needs to be specified for the APIWriter")
	}
	return &APIWriter{
		WriterConfig: wc,
		client: &http.Client{
			Timeout: time.Second * 60,
		},
		logger: slog.With(slog.String("writer", string(API_WRITER_TYPE))),
	}, nil
}

func (w *APIWriter) Write(outcomes []*runner.Outcome) error {
	reportJSON, err := encode(NewReport(outcomes))
	if err != nil {
		return fmt.Errorf("error while encoding report: %w", err)
	}
	if w.DryRun {
		// in dry run mode we do not post anything
		w.logger.Info(fmt.Sprintf("dry run, not posting report to %s", w.Uri))
		w.logger.Debug(fmt.Sprintf("report %s", reportJSON))
		return nil
	}

	req, err := http.NewRequest("POST", w.Uri, bytes.NewBuffer(reportJSON))
	if err != nil {
		return fmt.Errorf("error while creating post request: %w", err)
	}
	req.Header = map[string][]string{
		"Content-Type": {"application/json"},
	}
	if w.User != "" {
		req.SetBasicAuth(w.User, w.Password)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("error while sending post request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error while reading post request response: %w", err)
		}
		return fmt.Errorf("error while posting report. Status Code: %d Response: %s", resp.StatusCode, body)
	}
	w.logger.Info(fmt.Sprintf("posted report of %d runs to %s", len(outcomes), w.Uri))
	return nil
}
