package logger

import (
	"fmt"
	"novaflow/conf"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field 日志的键值对
type Field = zap.Field

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// 未初始化时使用开发模式，保证测试与工具命令可以直接打印
	l, _ := zap.NewDevelopment()
	setLogger(l)
}

func setLogger(l *zap.Logger) {
	log = l
	sugar = l.Sugar()
}

// InitLogger 根据配置初始化全局日志，输出到文件（按大小切割）以及可选的控制台
func InitLogger(cfg *conf.LogConfig, appName string) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if cfg.FileName != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), level))
	}
	if cfg.Console || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("app", appName))
	setLogger(l)
}

// Sync 刷新缓冲区，程序退出前调用
func Sync() {
	_ = log.Sync()
}

// Pair 构造一个日志字段
func Pair(key string, v any) Field {
	return zap.Any(key, v)
}

func Debug(msg string, fields ...Field) { log.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { log.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { log.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { log.Error(msg, fields...) }

func Debugf(format string, args ...any) { sugar.Debugf(format, args...) }
func Infof(format string, args ...any)  { sugar.Infof(format, args...) }
func Warnf(format string, args ...any)  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...any) { sugar.Errorf(format, args...) }

// Fatal 打印日志后退出进程
func Fatal(args ...any) {
	sugar.Fatal(fmt.Sprint(args...))
}

func Fatalf(format string, args ...any) {
	sugar.Fatalf(format, args...)
}
