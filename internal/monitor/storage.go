package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/profzeller/p16-server-setup/internal/hardware"
)

// Record is one monitoring tick persisted to the sample log.
type Record struct {
	Timestamp time.Time            `json:"timestamp"`
	SessionID string               `json:"session_id"`
	GPUs      []hardware.GPUSample `json:"gpus"`
}

// Storage appends monitor records to a JSONL file and reads them back for
// the dashboard.
type Storage struct {
	logFile string
}

// NewStorage creates the parent directory and returns a storage handle.
func NewStorage(logFile string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sample log directory: %w", err)
	}
	return &Storage{logFile: logFile}, nil
}

// Append writes one record as a JSON line.
func (s *Storage) Append(rec Record) error {
	file, err := os.OpenFile(s.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open sample log: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}

// Last returns up to limit records, newest last. A missing log yields an
// empty slice.
func (s *Storage) Last(limit int) ([]Record, error) {
	file, err := os.Open(s.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to open sample log: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // Skip invalid lines
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample log: %w", err)
	}

	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
