package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger represents the application logger
type Logger struct {
	*logrus.Logger
	config LogConfig
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// NewLogger creates a new logger instance
func NewLogger(config LogConfig) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch strings.ToLower(config.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
			ForceColors:     true,
			DisableQuote:    true,
		})
	default:
		log.SetFormatter(&CustomFormatter{})
	}

	return &Logger{
		Logger: log,
		config: config,
	}, nil
}

// CustomFormatter provides a clean, timestamped format for console output
type CustomFormatter struct{}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	level := strings.ToUpper(entry.Level.String())

	var levelColor string
	switch entry.Level {
	case logrus.DebugLevel:
		levelColor = "\033[36m" // Cyan
	case logrus.InfoLevel:
		levelColor = "\033[32m" // Green
	case logrus.WarnLevel:
		levelColor = "\033[33m" // Yellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelColor = "\033[31m" // Red
	default:
		levelColor = "\033[0m" // Reset
	}

	resetColor := "\033[0m"

	msg := fmt.Sprintf("%s [%s%s%s] %s",
		timestamp,
		levelColor,
		level,
		resetColor,
		entry.Message)

	if len(entry.Data) > 0 {
		msg += " |"
		for key, value := range entry.Data {
			msg += fmt.Sprintf(" %s=%v", key, value)
		}
	}

	msg += "\n"
	return []byte(msg), nil
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

// WithTransaction returns a logger with transaction context
func (l *Logger) WithTransaction(signature string) *logrus.Entry {
	return l.WithField("transaction", signature)
}

// WithWallet returns a logger with wallet context
func (l *Logger) WithWallet(address string) *logrus.Entry {
	return l.WithField("wallet", address)
}

// LogEndpointSelected logs the outcome of the startup endpoint probe
func (l *Logger) LogEndpointSelected(endpoint string, latency time.Duration, probed int) {
	l.WithFields(logrus.Fields{
		"event":      "endpoint_selected",
		"endpoint":   endpoint,
		"latency_ms": latency.Milliseconds(),
		"probed":     probed,
	}).Info("RPC endpoint selected")
}

// LogAccountsDiscovered logs a completed discovery scan
func (l *Logger) LogAccountsDiscovered(wallet string, withBalance, empty int, solLamports uint64) {
	l.WithFields(logrus.Fields{
		"event":        "accounts_discovered",
		"wallet":       wallet,
		"with_balance": withBalance,
		"empty":        empty,
		"sol_lamports": solLamports,
	}).Info("Token accounts discovered")
}

// LogSubmissionState logs a submission state-machine transition
func (l *Logger) LogSubmissionState(state string, signature string) {
	fields := logrus.Fields{
		"event": "submission_state",
		"state": state,
	}
	if signature != "" {
		fields["signature"] = signature
	}
	l.WithFields(fields).Info("Submission state changed")
}

// LogStartup logs application startup information
func (l *Logger) LogStartup(version, network string, endpoints []string) {
	l.WithFields(logrus.Fields{
		"event":     "startup",
		"version":   version,
		"network":   network,
		"endpoints": strings.Join(endpoints, ","),
	}).Info("Consolidator starting up")
}

// LogShutdown logs application shutdown information
func (l *Logger) LogShutdown(reason string) {
	l.WithFields(logrus.Fields{
		"event":  "shutdown",
		"reason": reason,
	}).Info("Consolidator shutting down")
}
