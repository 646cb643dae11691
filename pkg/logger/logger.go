package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	return NewWithWriter(os.Getenv("LOG_LEVEL"), os.Stdout)
}

// NewWithWriter creates a logger at the given level writing to w
func NewWithWriter(levelStr string, w io.Writer) *Logger {
	level := getLogLevel(levelStr)

	// Create handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Create handler based on environment
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		// Use text handler for development (more readable)
		handler = slog.NewTextHandler(w, opts)
	} else {
		// Use JSON handler for production (structured)
		handler = slog.NewJSONHandler(w, opts)
	}

	// Create logger
	logger := slog.New(handler)

	return &Logger{
		Logger: logger,
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("user_id", userID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Admission logging methods

// LogAttendeeRegistered logs the decision taken for a registration
func (l *Logger) LogAttendeeRegistered(ctx context.Context, eventID, attendanceID, status string, position int) {
	l.Logger.InfoContext(ctx,
		"Attendee Registered",
		slog.String("event_id", eventID),
		slog.String("attendance_id", attendanceID),
		slog.String("status", status),
		slog.Int("waitlist_position", position),
	)
}

// LogRegistrationRejected logs a rejected registration and its reason code
func (l *Logger) LogRegistrationRejected(ctx context.Context, eventID, userID, reason string) {
	l.Logger.InfoContext(ctx,
		"Registration Rejected",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
}

// LogAttendeeRemoved logs a removal from an event
func (l *Logger) LogAttendeeRemoved(ctx context.Context, eventID, attendanceID, previousStatus string) {
	l.Logger.InfoContext(ctx,
		"Attendee Removed",
		slog.String("event_id", eventID),
		slog.String("attendance_id", attendanceID),
		slog.String("previous_status", previousStatus),
	)
}

// LogPromotion logs a waitlist promotion
func (l *Logger) LogPromotion(ctx context.Context, eventID, attendanceID, trigger string) {
	l.Logger.InfoContext(ctx,
		"Waitlist Promotion",
		slog.String("event_id", eventID),
		slog.String("attendance_id", attendanceID),
		slog.String("trigger", trigger),
	)
}

// LogWaitlistInconsistent logs a waitlist that failed its ordering checks
func (l *Logger) LogWaitlistInconsistent(ctx context.Context, eventID string, err error) {
	l.Logger.ErrorContext(ctx,
		"Waitlist Inconsistent",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogBoundaryTimeout logs a failed admission boundary acquisition
func (l *Logger) LogBoundaryTimeout(ctx context.Context, eventID string, waited time.Duration) {
	l.Logger.WarnContext(ctx,
		"Admission Boundary Timeout",
		slog.String("event_id", eventID),
		slog.Duration("waited", waited),
	)
}

// Security logging methods

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.DebugContext(ctx, msg, args...)
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
