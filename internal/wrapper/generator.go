package wrapper

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/valyala/fasttemplate"
)

const scriptPathVariable = "%wslScript%"

// Request 描述一次包装脚本生成所需的全部信息。
type Request struct {
	UserID       string
	WSLID        string
	ShellCommand string
	DefaultUser  string
	HasBash      bool
}

// Paths 是两个包装脚本的绝对路径。
type Paths struct {
	Agnostic string
	Pinned   string
}

// Generator 把包装脚本写入 Dir。
type Generator struct {
	Fs     afero.Fs
	Dir    string
	Logger logrus.FieldLogger
}

// PathsFor 返回 req 对应的两个脚本路径，不触碰文件系统。
func (g *Generator) PathsFor(req Request) Paths {
	shell := ShellName(req.ShellCommand)
	return Paths{
		Agnostic: filepath.Join(g.Dir, fmt.Sprintf("wsl-%s.bat", shell)),
		Pinned:   filepath.Join(g.Dir, fmt.Sprintf("wsl-%s_%s.bat", shell, req.UserID)),
	}
}

// Generate 在配置了自定义命令或任一脚本缺失时重写两个脚本，否则保持原样。
func (g *Generator) Generate(req Request) (Paths, error) {
	paths := g.PathsFor(req)
	custom := strings.TrimSpace(req.ShellCommand) != ""

	if !custom {
		agnostic, _ := afero.Exists(g.Fs, paths.Agnostic)
		pinned, _ := afero.Exists(g.Fs, paths.Pinned)
		if agnostic && pinned {
			g.Logger.Debug("wrapper scripts already exist, leaving them untouched")
			return paths, nil
		}
	}

	if err := g.Fs.MkdirAll(g.Dir, 0o755); err != nil {
		return paths, fmt.Errorf("create wrapper directory: %w", err)
	}
	if err := g.write(paths.Agnostic, Render(req, "")); err != nil {
		return paths, err
	}
	if err := g.write(paths.Pinned, Render(req, " --distribution "+req.WSLID)); err != nil {
		return paths, err
	}
	g.Logger.WithField("dir", g.Dir).Debug("wrapper scripts written")
	return paths, nil
}

func (g *Generator) write(path, body string) error {
	if err := afero.WriteFile(g.Fs, path, []byte(body), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Render 生成脚本正文。selector 为空时作用于默认发行版。
func Render(req Request, selector string) string {
	custom := strings.TrimSpace(req.ShellCommand) != ""
	if !custom && !req.HasBash {
		return toBatch(fasttemplate.ExecuteString(missingShellTemplate, "{{", "}}", map[string]interface{}{
			"distribution": req.UserID,
		}))
	}

	user := ""
	if req.DefaultUser != "" {
		user = "--user " + req.DefaultUser
	}
	return toBatch(fasttemplate.ExecuteString(dispatcherTemplate, "{{", "}}", map[string]interface{}{
		"distribution": selector,
		"user":         user,
		"command":      ShellInvocation(req.ShellCommand),
	}))
}

// ShellInvocation 返回调用脚本的命令行：默认 bash，或替换 {0} 后的自定义模板。
func ShellInvocation(template string) string {
	if strings.TrimSpace(template) == "" {
		return "bash --noprofile --norc -euo pipefail '" + scriptPathVariable + "'"
	}
	escaped := strings.ReplaceAll(template, "%", "%%")
	if !strings.Contains(escaped, "{0}") {
		return escaped + " '" + scriptPathVariable + "'"
	}
	return fasttemplate.ExecuteStringStd(escaped, "{", "}", map[string]interface{}{"0": scriptPathVariable})
}

func toBatch(body string) string {
	return strings.ReplaceAll(body, "\n", "\r\n")
}

const missingShellTemplate = `@echo off
echo Default shell 'bash' is not available in the WSL distribution '{{distribution}}'. 1>&2
echo Add 'bash' to the 'additional-packages' input or set 'wsl-shell-command' to a shell that is available. 1>&2
exit /b 1
`

const dispatcherTemplate = `@echo off
setlocal

set "user={{user}}"
if "%~1" == "-u" goto withUser
if "%~1" == "" goto usage
if not "%~2" == "" goto usage
set "script=%~f1"
goto run

:withUser
if "%~2" == "" goto usage
if "%~3" == "" goto usage
if not "%~4" == "" goto usage
wsl.exe{{distribution}} --user root id -u %~2 >nul 2>&1
if errorlevel 1 (
    echo User '%~2' does not exist in the WSL distribution, create it first or use the 'wsl-shell-user' input 1>&2
    exit /b 1
)
set "user=--user %~2"
set "script=%~f3"
goto run

:usage
echo Usage: %~nx0 [-u ^<user^>] ^<script file^> 1>&2
echo   ^<user^> must already exist in the WSL distribution 1>&2
exit /b 1

:run
if not exist "%script%" (
    echo Script file '%script%' does not exist 1>&2
    goto usage
)
for /f "usebackq delims=" %%p in (` + "`" + `wsl.exe{{distribution}} wslpath '%script%'` + "`" + `) do set "wslScript=%%p"
wsl.exe{{distribution}} %user% sed -i 's/\r$//' '%wslScript%'
wsl.exe{{distribution}} %user% {{command}}
exit /b %ERRORLEVEL%
`
