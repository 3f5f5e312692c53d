// Package logger 进程级 logrus 实例与统一的单行输出格式
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log 全局日志实例。未调用 Init 前按 logrus 默认行为写标准错误，
// 各包可直接引用而无需判空。
var Log = logrus.New()

// lineFormatter 输出 [时间] [级别] [文件:行号] 消息 的单行格式
type lineFormatter struct{}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var caller string
	if entry.HasCaller() {
		caller = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	// 级别统一截到 4 位对齐: INFO / WARN / ERRO / DEBU
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	return fmt.Appendf(nil, "[%s] [%s] [%s] %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), level, caller, entry.Message), nil
}

// Init 按配置重建全局日志：级别、调用方定位与可选的文件落盘。
// 级别解析失败时退回 info，不视为错误。
func Init(levelStr, filePath string) error {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(&lineFormatter{})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	out := io.Writer(os.Stdout)
	if filePath != "" {
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("创建日志目录失败: %w", err)
			}
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, file)
	}
	l.SetOutput(out)

	Log = l
	return nil
}
