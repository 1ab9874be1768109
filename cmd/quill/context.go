package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"quill/internal/api"
	"quill/internal/bootstrap"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/transcript"
)

type commandContext struct {
	configFlag *string
	userFlag   *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, userFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) user() string {
	if c.userFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.userFlag)
}

func (c *commandContext) requireUser() (string, error) {
	user := c.user()
	if user == "" {
		return "", errors.New("--user is required for this command")
	}
	return user, nil
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withApp opens the services for the duration of fn.
func (c *commandContext) withApp(fn func(*bootstrap.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg, "")
	if err != nil {
		return err
	}
	app, err := bootstrap.Open(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// readSnapshot decodes a JSON snapshot from path, or from stdin when path is
// empty or "-".
func readSnapshot(cmd *cobra.Command, path string) (transcript.Snapshot, error) {
	var r io.Reader = cmd.InOrStdin()
	if path = strings.TrimSpace(path); path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return transcript.Snapshot{}, fmt.Errorf("open snapshot: %w", err)
		}
		defer file.Close()
		r = file
	}
	return api.DecodeSnapshot(r)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
