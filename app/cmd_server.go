package main

import (
	"fmt"

	log "github.com/go-pkgz/lgr"

	"github.com/ed-tools/dataquiz/app/config"
	"github.com/ed-tools/dataquiz/app/persistence"
	"github.com/ed-tools/dataquiz/app/web"
)

// ServerCommand serves pipeline status from the run store over http.
type ServerCommand struct {
	Address      string `long:"listen" env:"DATAQUIZ_LISTEN" default:":8080" description:"listen address"`
	PasswordHash string `long:"password-hash" env:"DATAQUIZ_PASSWORD_HASH" description:"bcrypt hash enabling basic auth"`
}

// Execute runs the status server until interrupted.
func (c *ServerCommand) Execute(_ []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	store, err := persistence.NewSQLiteStore(cfg.StoreDB)
	if err != nil {
		return fmt.Errorf("can't open run store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] can't close run store: %v", err)
		}
	}()
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("can't initialize run store: %w", err)
	}

	srv := &web.Server{Store: store, Address: c.Address, Version: revision, PasswordHash: c.PasswordHash}
	return srv.Run(rootCtx)
}
