// Package wrapper generates the batch scripts that let workflow steps use a
// WSL distribution as their shell.
package wrapper

import (
	"path"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// DefaultShell 是未配置 wsl-shell-command 时使用的 shell。
const DefaultShell = "bash"

// ShellName 返回命令模板的首个单词（去掉目录部分），模板为空时返回 bash。
func ShellName(template string) string {
	if name := firstWord(template); name != "" {
		return path.Base(name)
	}
	return DefaultShell
}

func firstWord(template string) string {
	file, err := syntax.NewParser().Parse(strings.NewReader(template), "")
	if err == nil && len(file.Stmts) > 0 {
		if call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			if lit := call.Args[0].Lit(); lit != "" {
				return lit
			}
		}
	}
	if fields := strings.Fields(template); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
