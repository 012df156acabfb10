// Command mbxscan opens the mailboxes listed in a JSON config file, reports
// their messages by pointer and size, and saves their snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/infodancer/mailboxes"
	"github.com/infodancer/mailboxes/maildir"
	"github.com/infodancer/mailboxes/mbox"
	"github.com/infodancer/mailboxes/snapshot"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s config.json\n", os.Args[0])
		os.Exit(1)
	}

	config, err := loadConfig(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config file: %s\n", err)
		os.Exit(2)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Development = false
	logConfig.DisableStacktrace = true
	if !config.Debug {
		logConfig.Level.SetLevel(zap.InfoLevel)
	}
	log, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(3)
	}
	defer func() { _ = log.Sync() }()

	codec, err := snapshot.ByName(config.Codec)
	if err != nil {
		log.Fatal("Failed to create snapshot codec", zap.Error(err))
	}

	reg := mailboxes.NewRegistry()
	maildir.Register(reg)
	mbox.Register(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := &scanner{
		registry: reg,
		cfg:      mailboxes.Config{Options: config.Options},
		writer:   snapshot.Writer(codec),
		session:  zapSession{log: log},
		log:      log,
	}
	if config.Passphrase != "" {
		passphrase := []byte(config.Passphrase)
		s.key = func() ([]byte, error) { return passphrase, nil }
	}

	failed := 0
	for i, mc := range config.Mailboxes {
		if err := s.scan(ctx, i, mc); err != nil {
			if ctx.Err() != nil {
				log.Warn("Interrupted", zap.Error(err))
				os.Exit(130)
			}
			log.Error("Failed to scan mailbox", zap.String("path", mc.Path), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		os.Exit(4)
	}
}
