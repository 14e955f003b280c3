package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/config"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/factory"
	"github.com/ChamsBouzaiene/assist/internal/pipeline"
)

var showProgress bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session for a project",
	Long: `Reads one message per line and replies. Commands:
  /end    end the session (consolidates notes, starts a new session)
  /items  list open work items
  /quit   leave without ending the session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go watchConfig(watchCtx, rt)

		return runChat(ctx, rt, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().BoolVar(&showProgress, "progress", false, "Print pipeline phases as they run")
}

// watchConfig rebuilds the orchestrator when config.yaml changes.
func watchConfig(ctx context.Context, rt *factory.Runtime) {
	err := mgr.Watch(ctx, func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		if err := rt.Reconfigure(next); err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("path", mgr.GetConfigPath()))
	})
	if err != nil {
		logger.Debug("config watch unavailable", zap.Error(err))
	}
}

func runChat(ctx context.Context, rt *factory.Runtime, in io.Reader, out io.Writer) error {
	sess, err := rt.Orchestrator().OpenSession(ctx, projectID)
	if err != nil {
		return err
	}
	sessionID := sess.ID
	fmt.Fprintf(out, "Project %s, session %s (%d earlier turn(s)). /end to close the session, /quit to leave.\n",
		projectID, sessionID, len(sess.Turns))

	var opts []pipeline.TurnOption
	if showProgress {
		opts = append(opts, pipeline.WithProgress(func(p engine.Phase, status string) {
			fmt.Fprintf(out, "  · %s: %s\n", p, status)
		}))
	}

	s := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !s.Scan() {
			break
		}
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/items":
			if err := printItems(ctx, rt, out, false); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			continue
		case "/end":
			res, err := rt.Orchestrator().EndSession(ctx, projectID, sessionID)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			printEnd(out, res)
			sessionID = res.NewSessionID
			continue
		}

		res, err := rt.Orchestrator().ProcessTurn(ctx, projectID, line, sessionID, opts...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(out, "error:", err)
			continue
		}
		fmt.Fprintf(out, "assist> %s\n", res.ResponseText)
	}
	return s.Err()
}

func printEnd(out io.Writer, res *pipeline.EndSessionResult) {
	fmt.Fprintf(out, "Session %q ended. %s\n", res.Title, res.Summary)
	for _, d := range res.Summary.Details {
		fmt.Fprintf(out, "  - %s\n", d)
	}
	fmt.Fprintf(out, "New session %s started.\n", res.NewSessionID)
}
