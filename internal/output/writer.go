// Package output provides the interface and configuration and implementation for writers
package output

import (
	"fmt"

	"github.com/jakopako/uiverify/internal/runner"
)

// Writer defines the interface for all writers that are responsible
// for reporting the outcomes of a verification to a specific output.
type Writer interface {
	Write(outcomes []*runner.Outcome) error
}

// WriterConfig defines the necessary paramters to make a new writer
// which is responsible for reporting the outcomes to a specific output
// eg. stdout.
type WriterConfig struct {
	Type     WriterType `yaml:"type" env:"UIVERIFY_WRITER" env-default:"stdout"`
	Uri      string     `yaml:"uri" env:"UIVERIFY_WRITER_URI"`
	User     string     `yaml:"user" env:"UIVERIFY_WRITER_USER"`         // we want to be able to pass credentials via env vars
	Password string     `yaml:"password" env:"UIVERIFY_WRITER_PASSWORD"` // we want to be able to pass credentials via env vars
	FileDir  string     `yaml:"filedir"`
	DryRun   bool       `yaml:"dryrun"`
}

// WriterType encapsulates the type of a writer
// See below constants for possible types
type WriterType string

const (
	STDOUT_WRITER_TYPE WriterType = "stdout"
	FILE_WRITER_TYPE   WriterType = "file"
	API_WRITER_TYPE    WriterType = "api"
)

// NewWriter returns a new writer depending on the writer type
func NewWriter(wc *WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE, "":
		return NewStdoutWriter(wc), nil
	case FILE_WRITER_TYPE:
		return NewFileWriter(wc)
	case API_WRITER_TYPE:
		return NewAPIWriter(wc)
	default:
		return nil, fmt.Errorf("writer of type '%s' not implemented", wc.Type)
	}
}
