package action

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Outputs 通过 runner 的文件协议写入步骤输出与 PATH。文件未配置时只记录日志。
type Outputs struct {
	Fs         afero.Fs
	OutputFile string
	PathFile   string
	Logger     logrus.FieldLogger
	// Setenv 与 Getenv 默认使用 os 包，测试时可替换。
	Setenv func(key, value string) error
	Getenv func(key string) string
}

// Set 以 name<<delimiter 形式追加一条输出，delimiter 每次随机生成。
func (o *Outputs) Set(name, value string) error {
	if o.OutputFile == "" {
		o.Logger.Infof("output %s=%s", name, value)
		return nil
	}
	delimiter := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(name, delimiter) || strings.Contains(value, delimiter) {
		return fmt.Errorf("output %s collides with delimiter %s", name, delimiter)
	}
	return o.appendLine(o.OutputFile, fmt.Sprintf("%s<<%s\n%s\n%s", name, delimiter, value, delimiter))
}

// AddPath 让后续步骤与当前进程都能找到 dir 下的可执行文件。
func (o *Outputs) AddPath(dir string) error {
	if o.PathFile != "" {
		if err := o.appendLine(o.PathFile, dir); err != nil {
			return err
		}
	} else {
		o.Logger.Infof("add path %s", dir)
	}
	getenv, setenv := o.Getenv, o.Setenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if setenv == nil {
		setenv = os.Setenv
	}
	return setenv("PATH", dir+string(os.PathListSeparator)+getenv("PATH"))
}

func (o *Outputs) appendLine(path, line string) error {
	f, err := o.Fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
