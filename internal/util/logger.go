package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized = errors.New("log object is not initialized yet")
	ErrUnknownLogLevel   = errors.New("unknown log level")
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// LoggerOptions describes where and how much to log. Zero values fall back to
// the defaults in withDefaults.
type LoggerOptions struct {
	Folder     string
	FileName   string
	Level      int
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Stderr     bool
}

func (o LoggerOptions) withDefaults() LoggerOptions {
	if o.Folder == "" {
		o.Folder = "log"
	}
	if o.FileName == "" {
		o.FileName = "webService.log"
	}
	if o.Level == 0 {
		o.Level = LOG_LEVEL_INFO
	}
	if o.MaxSizeMB == 0 {
		o.MaxSizeMB = 64
	}
	if o.MaxBackups == 0 {
		o.MaxBackups = 7
	}
	if o.MaxAgeDays == 0 {
		o.MaxAgeDays = 7
	}
	return o
}

// MetricsLogger hands log lines to a single writer goroutine through a
// buffered channel so request handlers never wait on file I/O.
type MetricsLogger struct {
	mu                sync.RWMutex
	logBuffer         chan LeveledLogger
	sink              *lumberjack.Logger
	wg                *sync.WaitGroup
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type LeveledLogger struct {
	level  int
	logMsg string
}

func (m *MetricsLogger) Init(opts LoggerOptions) error {
	opts = opts.withDefaults()

	if err := CheckAndCreateFolder(opts.Folder); err != nil {
		return err
	}

	m.sink = &lumberjack.Logger{
		Filename:   filepath.Join(opts.Folder, opts.FileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   false,
	}

	m.zapLoggerInit(opts)

	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan LeveledLogger, LOG_BUFFER_SIZE)

	m.wg.Add(1)
	go m.logWritter()

	m.mu.Lock()
	m.loggerInitialized = true
	m.mu.Unlock()
	return nil
}

func (m *MetricsLogger) zapLoggerInit(opts LoggerOptions) {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	config.EncodeLevel = zapcore.CapitalLevelEncoder //To Print level in Uppercase.
	fileEncoder := zapcore.NewConsoleEncoder(config) //To Print Lines in non json format.

	level := ZapLevel(opts.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder, zapcore.AddSync(m.sink), level),
	}
	if opts.Stderr {
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.Lock(os.Stderr), level))
	}

	m.zapLogger = zap.New(zapcore.NewTee(cores...))
}

func ZapLevel(level int) zapcore.Level {
	switch level {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel maps a config string such as "warn" to a LOG_LEVEL_* value.
func ParseLogLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
}

func (m *MetricsLogger) logWritter() {
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg)
		case LOG_LEVEL_INFO:
			m.zapLogger.Info(logdata.logMsg)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg)
		}
	}
	m.wg.Done()
}

// LogEvent accepts either a single message or a LOG_LEVEL_* constant followed
// by message parts, e.g. LogEvent(LOG_LEVEL_WARN, "limit rejected:", limit).
func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	level, msg := formatEvent(v...)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- LeveledLogger{level, msg}
	return nil
}

func formatEvent(v ...interface{}) (int, string) {
	if len(v) == 0 {
		return LOG_LEVEL_INFO, ""
	}
	if len(v) == 1 {
		return LOG_LEVEL_INFO, fmt.Sprint(v[0])
	}

	level, ok := v[0].(int)
	if ok && level >= LOG_LEVEL_ERROR && level <= LOG_LEVEL_DEBUG {
		return level, strings.TrimSuffix(fmt.Sprintln(v[1:]...), "\n")
	}
	return LOG_LEVEL_INFO, strings.TrimSuffix(fmt.Sprintln(v...), "\n")
}

func (m *MetricsLogger) DeInit() {
	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()

	m.zapLogger.Sync()
	m.sink.Close()
}

func CheckAndCreateFolder(folderNameWithPath string) error {
	_, err := os.Stat(folderNameWithPath)

	if os.IsNotExist(err) {
		if err := os.MkdirAll(folderNameWithPath, 0755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", folderNameWithPath, err)
		}
		return nil
	}
	return err
}
