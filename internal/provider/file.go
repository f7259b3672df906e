package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultOutputDir = "./mail_output"

// File implements the Provider interface by writing each message as an .eml
// file in the configured output directory. Intended for development and
// local end-to-end runs.
type File struct {
	outputDir string
	now       func() time.Time
}

// NewFile creates a File provider writing to cfg.OutputDir, or
// "./mail_output" when unset.
func NewFile(cfg ProviderConfig) *File {
	dir := cfg.OutputDir
	if dir == "" {
		dir = defaultOutputDir
	}
	return &File{outputDir: dir, now: time.Now}
}

func (f *File) GetName() string { return "file" }

// Send writes the message to <timestamp>_<message-id>.eml.
func (f *File) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("file: create output dir: %w", err)
	}

	now := f.now()
	safeID := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(msg.ID)
	filename := fmt.Sprintf("%s_%s.eml", now.Format("20060102_150405.000000"), safeID)
	path := filepath.Join(f.outputDir, filename)

	if err := os.WriteFile(path, buildMIME(msg, now), 0o640); err != nil {
		return nil, fmt.Errorf("file: write %s: %w", path, err)
	}

	return &DeliveryResult{
		ProviderMessageID: "file-" + msg.ID,
		Status:            StatusSent,
		Timestamp:         now,
		Metadata:          map[string]string{"path": path},
	}, nil
}

// HealthCheck verifies the output directory is writable.
func (f *File) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return fmt.Errorf("file: output dir not writable: %w", err)
	}
	return nil
}
