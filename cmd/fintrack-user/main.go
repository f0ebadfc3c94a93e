// Command fintrack-user manages accounts directly in the configured backend,
// for setups where self-registration is not wanted or a password was lost.
//
//	fintrack-user create <username>
//	fintrack-user reset-password <username>
//
// The password is read from FINTRACK_PASSWORD or, when unset, from the first
// line of stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/store"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fintrack-user create|reset-password <username>")
	os.Exit(2)
}

func readPassword() (string, error) {
	if pw := os.Getenv("FINTRACK_PASSWORD"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func main() {
	if len(os.Args) != 3 {
		usage()
	}
	cmd, username := os.Args[1], os.Args[2]
	if cmd != "create" && cmd != "reset-password" {
		usage()
	}

	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(applog.ComponentAuth)
	if cfg.DataBackend == "memory" {
		logger.Error("fintrack-user needs a persistent backend (sqlite or postgres)")
		os.Exit(1)
	}
	backend := cli.OpenBackend(logger, cfg)
	defer backend.Close()

	password, err := readPassword()
	if err != nil {
		logger.Error("No password given", applog.FieldError, err)
		os.Exit(1)
	}

	svc := auth.NewService(backend, backend,
		auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL), logger.Slog())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "create":
		id, err := svc.CreateUser(ctx, username, password)
		if err != nil {
			logger.Error("Create user failed", applog.FieldError, err, "username", username)
			os.Exit(1)
		}
		fmt.Printf("Created user %s (%s)\n", username, id)
	case "reset-password":
		err := svc.ResetPassword(ctx, username, password)
		if errors.Is(err, store.ErrNotFound) {
			logger.Error("No such user", "username", username)
			os.Exit(1)
		}
		if err != nil {
			logger.Error("Password reset failed", applog.FieldError, err, "username", username)
			os.Exit(1)
		}
		fmt.Printf("Password updated for %s; existing sessions were revoked\n", username)
	}
}
