// Package logger configures the process-wide logrus logger with a rotating
// file sink and an in-memory buffer served by the API.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogManager handles global log management
type LogManager struct {
	dataDir string
	file    *RotatingFile
	memory  *MemoryStore
}

var (
	manager  *LogManager
	once     sync.Once
	memory   = NewMemoryStore(2000)
	hookOnce sync.Once
)

// InitLogManager routes the standard logrus logger to stdout and dataDir/logs/rulesconv.log.
// LOG_LEVEL selects the level, defaulting to info.
func InitLogManager(dataDir string) error {
	var initErr error
	once.Do(func() {
		file, err := NewRotatingFile(filepath.Join(dataDir, "logs", "rulesconv.log"), DefaultMaxSize, DefaultMaxBackups)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize app logger: %w", err)
			return
		}

		level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil {
			level = logrus.InfoLevel
		}
		log := logrus.StandardLogger()
		log.SetLevel(level)
		log.SetOutput(io.MultiWriter(os.Stdout, file))
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006/01/02 15:04:05"})
		captureMemory()

		manager = &LogManager{dataDir: dataDir, file: file, memory: memory}
	})
	return initErr
}

func captureMemory() {
	hookOnce.Do(func() {
		logrus.StandardLogger().AddHook(memory.Hook())
	})
}

// GetLogManager returns the global log manager
func GetLogManager() *LogManager {
	return manager
}

// File returns the rotating app log file.
func (m *LogManager) File() *RotatingFile {
	return m.file
}

// L returns the standard logger, which also satisfies ruleconvert.Logger.
func L() *logrus.Logger {
	return logrus.StandardLogger()
}

// Printf app log shortcut method
func Printf(format string, v ...any) {
	logrus.Infof(format, v...)
}

// Println app log shortcut method
func Println(v ...any) {
	logrus.Infoln(v...)
}

func Infof(format string, v ...any)  { logrus.Infof(format, v...) }
func Warnf(format string, v ...any)  { logrus.Warnf(format, v...) }
func Errorf(format string, v ...any) { logrus.Errorf(format, v...) }
func Debugf(format string, v ...any) { logrus.Debugf(format, v...) }

// ReadAppLogs reads the last lines of the app log file.
func ReadAppLogs(lines int) ([]string, error) {
	if manager == nil || manager.file == nil {
		return []string{}, nil
	}
	return manager.file.ReadLastLines(lines)
}

// Recent returns buffered entries, see MemoryStore.List.
func Recent(limit int, level, search string, sinceID int64) []Entry {
	captureMemory()
	return memory.List(limit, level, search, sinceID)
}
