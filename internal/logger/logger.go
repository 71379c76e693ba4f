// Package logger пишет логи с префиксом сервиса через асинхронную очередь,
// чтобы горячие пути (доставка событий, хаб) не ждали stderr.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const asyncBufferSize = 8192

// slowCall порог, после которого LogDuration пишет даже на уровне info.
const slowCall = 100 * time.Millisecond

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	prefix  atomic.Value
	level   atomic.Int32
	ch      chan string
	once    sync.Once
	dropped atomic.Int64
)

func init() {
	level.Store(int32(parseLevel(os.Getenv("LOG_LEVEL"))))
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel меняет уровень логирования ("debug", "info", "warn", "error").
func SetLevel(s string) {
	level.Store(int32(parseLevel(s)))
}

func enabled(l Level) bool {
	return Level(level.Load()) <= l
}

func initWorker() {
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			log.Print(msg)
		}
	}()
}

func enqueue(msg string) {
	once.Do(initWorker)
	select {
	case ch <- msg:
	default:
		dropped.Add(1)
	}
}

// Dropped возвращает число сообщений, потерянных из-за переполнения очереди.
func Dropped() int64 { return dropped.Load() }

// SetPrefix задаёт префикс для всех последующих логов (например "api").
func SetPrefix(p string) {
	prefix.Store(p)
}

func tag() string {
	p, _ := prefix.Load().(string)
	if p == "" {
		return ""
	}
	return "[" + p + "] "
}

func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
	}
}

func Info(v ...any) {
	if enabled(LevelInfo) {
		enqueue(tag() + fmt.Sprint(v...))
	}
}

func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		enqueue(tag() + fmt.Sprintf(format, v...))
	}
}

func Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		enqueue(tag() + "WARN: " + fmt.Sprintf(format, v...))
	}
}

func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration пишет имя операции и время выполнения.
// На уровне debug пишутся все вызовы, иначе только медленные.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if enabled(LevelDebug) || elapsed >= slowCall {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration: defer logger.DeferLogDuration("chatRepo.Create", time.Now())()
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
