package control

import (
	"fmt"
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type DiagnosticOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// diagnosticLog is the per-slot log file. The slot's client logs to it and
// to the main log; a spawned server writes its output to it.
type diagnosticLog struct {
	file   *lumberjack.Logger
	logger *log.Logger
}

// DiagnosticLogPath returns the diagnostic log file of slot.
func DiagnosticLogPath(dataDir string, slot int) string {
	return filepath.Join(dataDir, "logs", fmt.Sprintf("telescope_server_%d.log", slot))
}

func openDiagnosticLog(root *log.Logger, dataDir string, slot int, opts DiagnosticOptions) *diagnosticLog {
	file := &lumberjack.Logger{
		Filename:   DiagnosticLogPath(dataDir, slot),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	logger := log.New()
	logger.SetOutput(io.MultiWriter(root.Out, file))
	logger.SetFormatter(root.Formatter)
	logger.SetLevel(root.GetLevel())
	logger.Infof("Diagnostic log for slot %d opened", slot)

	return &diagnosticLog{file: file, logger: logger}
}

// Close is safe on a nil log.
func (d *diagnosticLog) Close() error {
	if d == nil {
		return nil
	}
	return d.file.Close()
}
