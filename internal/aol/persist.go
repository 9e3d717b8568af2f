package aol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// fileTipHash scans the file at path and returns the chain hash of its
// last entry, or the empty string when the file holds no entries.
func fileTipHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var last []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			last = append(last[:0], scanner.Bytes()...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to scan log file: %w", err)
	}
	if len(last) == 0 {
		return "", nil
	}
	var entry Entry
	if err := json.Unmarshal(last, &entry); err != nil {
		return "", fmt.Errorf("failed to decode last entry: %w", err)
	}
	return entry.ChainHash, nil
}

func writeEntries(f *os.File, entries Log) error {
	w := bufio.NewWriter(f)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	return w.Flush()
}

// Persist durably writes log to the file at path. If the file already
// exists only the suffix after the file's current tip is appended, which
// makes Persist idempotent and resumable; otherwise the whole log is
// written.
func Persist(log Log, path string) error {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat log file: %w", err)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		if err := writeEntries(f, log); err != nil {
			return err
		}
		return f.Close()
	}

	tip, err := fileTipHash(path)
	if err != nil {
		return err
	}
	suffix, err := SuffixAfter(log, tip)
	if err != nil {
		return fmt.Errorf("log file tip %q is not in the log being persisted: %w", tip, err)
	}
	if len(suffix) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if err := writeEntries(f, suffix); err != nil {
		return err
	}
	return f.Close()
}

// Load reads the log stored at path, creating an empty log file first if
// none exists.
func Load(path string) (Log, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat log file: %w", err)
		}
		if err := Persist(Log{}, path); err != nil {
			return nil, err
		}
		return Log{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	log := Log{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		log = append(log, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log file: %w", err)
	}
	return log, nil
}
