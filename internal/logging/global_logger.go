package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/util"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogName      = "main.log"
	mainLogMaxSizeMB = 10
	noRequestID      = "--------"
)

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
	retention      *retentionJanitor
)

// LogFormatter renders entries as
//
//	[2026-01-02 15:04:05] [a1b2c3d4] [info ] [callback.go:88] exchange finished result=success status=200
//
// Only the fields listed in logFieldOrder are printed, in that order.
type LogFormatter struct{}

var logFieldOrder = []string{"host", "phase", "result", "status", "identity", "backend", "provider_error", "provider_description", "route", "error"}

// Format renders a single log entry.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	reqID := noRequestID
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = id
	}
	level := entry.Level.String()
	if entry.Level == log.WarnLevel {
		level = "warn"
	}

	fmt.Fprintf(buffer, "[%s] [%s] [%-5s] ", entry.Time.Format("2006-01-02 15:04:05"), reqID, level)
	if entry.Caller != nil {
		fmt.Fprintf(buffer, "[%s:%d] ", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	buffer.WriteString(strings.TrimRight(entry.Message, "\r\n"))
	for _, key := range logFieldOrder {
		if value, ok := entry.Data[key]; ok {
			fmt.Fprintf(buffer, " %s=%v", key, value)
		}
	}
	buffer.WriteByte('\n')
	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance and routes Gin's writers through it.
// It is safe to call multiple times.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		ginInfoWriter = log.StandardLogger().Writer()
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DefaultErrorWriter = ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...interface{}) {
			log.StandardLogger().Debugf(strings.TrimRight(format, "\r\n"), values...)
		}

		log.RegisterExitHandler(closeLogOutputs)
	})
}

// ResolveLogDirectory picks the log directory: $WRITABLE_PATH/logs, then ./logs when
// writable, then <auth-dir>/logs.
func ResolveLogDirectory(cfg *config.Config) string {
	if base := util.WritablePath(); base != "" {
		return filepath.Join(base, "logs")
	}
	logDir := "logs"
	if cfg == nil || isDirWritable(logDir) {
		return logDir
	}
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		log.Warnf("Failed to resolve auth-dir %q for log directory: %v", cfg.AuthDir, err)
		return logDir
	}
	if authDir != "" {
		logDir = filepath.Join(authDir, "logs")
	}
	return logDir
}

func isDirWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe, err := os.CreateTemp(dir, ".perm_test")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}

// ConfigureLogOutput switches the global log destination between a rotating main.log and
// stdout, and (re)starts the retention janitor when logs-max-total-size-mb is positive.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	logDir := ResolveLogDirectory(cfg)
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}

	activeLog := ""
	if cfg.LoggingToFile {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		activeLog = filepath.Join(logDir, mainLogName)
		logWriter = &lumberjack.Logger{
			Filename: activeLog,
			MaxSize:  mainLogMaxSizeMB,
		}
		log.SetOutput(logWriter)
	} else {
		log.SetOutput(os.Stdout)
	}

	retention.stop()
	retention = startRetentionJanitor(logDir, cfg.LogsMaxTotalSizeMB, activeLog)
	return nil
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	retention.stop()
	retention = nil

	if logWriter != nil {
		_ = logWriter.Close()
	}
	if ginInfoWriter != nil {
		_ = ginInfoWriter.Close()
	}
	if ginErrorWriter != nil {
		_ = ginErrorWriter.Close()
	}
	logWriter, ginInfoWriter, ginErrorWriter = nil, nil, nil
}
