package logging

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ActionsFormatter 把日志级别映射为 runner 的工作流命令：
// debug -> ::debug::，warning -> ::warning::，error 及以上 -> ::error::，info 原样输出。
type ActionsFormatter struct{}

// Format 实现 logrus.Formatter。
func (f *ActionsFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	message := entry.Message
	if len(entry.Data) > 0 {
		message += " " + formatFields(entry.Data)
	}

	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		b.WriteString("::debug::")
		b.WriteString(EscapeCommand(message))
	case logrus.WarnLevel:
		b.WriteString("::warning::")
		b.WriteString(EscapeCommand(message))
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		b.WriteString("::error::")
		b.WriteString(EscapeCommand(message))
	default:
		b.WriteString(message)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// EscapeCommand 转义工作流命令数据中的 %、CR 与 LF。
func EscapeCommand(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func formatFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := data[k]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, value))
	}
	return strings.Join(parts, " ")
}
