package wsl

import (
	"context"

	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
	"github.com/Vampire/setup-wsl-sub000/internal/host"
)

// distShell 以 root 身份在指定发行版内执行命令。
type distShell struct {
	client *Client
	wslID  string
}

// Exec 通过 /usr/bin/env 注入环境变量，wsl.exe 不会把 Windows 侧环境传进发行版。
func (s *distShell) Exec(ctx context.Context, req distribution.ExecRequest) error {
	args := []string{"--distribution", s.wslID, "--user", "root", "--exec", "/usr/bin/env"}
	args = append(args, req.Env...)
	args = append(args, req.Args...)
	_, err := s.client.runner.Run(ctx, host.Command{Name: host.WSLExecutable, Args: args, Stdin: req.Stdin})
	return err
}
