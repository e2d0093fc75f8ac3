package main

import (
	"fmt"
	"os"

	"github.com/zhubert/screenrec/cli"
	"github.com/zhubert/screenrec/config"
	"github.com/zhubert/screenrec/exec"
	"github.com/zhubert/screenrec/logger"
)

func main() {
	if err := run(); err != nil {
		cli.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	defer logger.Close()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetDebug(cfg.Debug)

	deps := &cli.Dependencies{
		Config:   cfg,
		Executor: exec.NewRealExecutor(),
	}
	return cli.NewRootCmd(deps).Execute()
}
