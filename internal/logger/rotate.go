package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// Default max log file size 10MB
	DefaultMaxSize = 10 * 1024 * 1024
	// Default number of log files to retain
	DefaultMaxBackups = 3
)

// RotatingFile is an io.Writer that rotates its file once it grows past maxSize.
type RotatingFile struct {
	mu          sync.Mutex
	file        *os.File
	filePath    string
	maxSize     int64
	maxBackups  int
	currentSize int64
}

// NewRotatingFile opens filePath for appending, creating its directory.
func NewRotatingFile(filePath string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}

	f := &RotatingFile{
		filePath:   filePath,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := f.openFile(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RotatingFile) openFile() error {
	file, err := os.OpenFile(f.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to get file info: %w", err)
	}

	f.file = file
	f.currentSize = info.Size()
	return nil
}

// rotate shifts file.N to file.N+1, dropping the oldest backup.
func (f *RotatingFile) rotate() error {
	if f.file != nil {
		f.file.Close()
	}

	os.Remove(fmt.Sprintf("%s.%d", f.filePath, f.maxBackups))
	for i := f.maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", f.filePath, i), fmt.Sprintf("%s.%d", f.filePath, i+1))
	}
	os.Rename(f.filePath, f.filePath+".1")

	return f.openFile()
}

// Write implements the io.Writer interface
func (f *RotatingFile) Write(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.currentSize+int64(len(p)) > f.maxSize {
		if err := f.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = f.file.Write(p)
	f.currentSize += int64(n)
	return
}

// Close closes the log file
func (f *RotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// ReadLastLines reads the last n lines of the current file.
func (f *RotatingFile) ReadLastLines(n int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		f.file.Sync()
	}

	file, err := os.Open(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(file)

	// Increase scanner buffer size to handle long lines
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read logs: %w", err)
	}

	return lines, nil
}

// Path returns the log file path
func (f *RotatingFile) Path() string {
	return f.filePath
}
