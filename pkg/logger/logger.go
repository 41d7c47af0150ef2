// Package logger 提供统一的日志框架
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Config 日志配置
type Config struct {
	Level      string `json:"level"`
	Format     string `json:"format"` // json/console
	Output     string `json:"output"` // stdout/stderr/file
	FilePath   string `json:"file_path,omitempty"`
	TimeFormat string `json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// PlannerLogger 排程引擎专用日志器
type PlannerLogger struct {
	base *zerolog.Logger
}

// NewPlannerLogger 创建排程引擎日志器
func NewPlannerLogger() *PlannerLogger {
	l := Get().With().Str("component", "planner").Logger()
	return &PlannerLogger{base: &l}
}

// StartPlan 记录排程开始
func (l *PlannerLogger) StartPlan(date string, nurses, visits int) {
	l.base.Info().
		Str("date", date).
		Int("nurses", nurses).
		Int("visits", visits).
		Msg("开始生成巡访排程")
}

// Attempt 记录一次求解尝试
func (l *PlannerLogger) Attempt(attempt int, relaxed bool) {
	l.base.Debug().
		Int("attempt", attempt).
		Bool("relaxed", relaxed).
		Msg("求解尝试")
}

// ConstraintViolation 记录约束违反
func (l *PlannerLogger) ConstraintViolation(code, details string) {
	l.base.Warn().
		Str("code", code).
		Str("details", details).
		Msg("约束违反")
}

// PlanComplete 记录排程完成
func (l *PlannerLogger) PlanComplete(scheduleID string, duration time.Duration, travelMinutes int) {
	l.base.Info().
		Str("schedule_id", scheduleID).
		Dur("duration", duration).
		Int("travel_minutes", travelMinutes).
		Msg("排程生成完成")
}
