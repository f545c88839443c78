package log

import (
	"fmt"
	"sync/atomic"
)

const rightArrow = "▶"

var counter uint32

const maxCount uint32 = 999

func (s Severity) String() string {
	switch s {
	case TraceLevel:
		return "TRAC"
	case DebugLevel:
		return "DEBU"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARN"
	case ErrorLevel:
		return "ERRO"
	case CriticalLevel:
		return "CRIT"
	default:
		return "NONE"
	}
}

func formatLine(line *logLine) string {
	count := atomic.AddUint32(&counter, 1) % maxCount

	if line.line == 0 {
		return fmt.Sprintf("%s ? %s %s %03d %s", line.timestamp.Format("060102 15:04:05.000"), rightArrow, line.level.String(), count, line.msg)
	}

	fPartStart := len(line.file) - 10
	if fPartStart < 0 {
		fPartStart = 0
	}
	return fmt.Sprintf("%s %s:%03d %s %s %03d %s", line.timestamp.Format("060102 15:04:05.000"), line.file[fPartStart:], line.line, rightArrow, line.level.String(), count, line.msg)
}
