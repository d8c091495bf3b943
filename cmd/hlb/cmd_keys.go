package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
	"hlb/internal/keys"
)

func runGenerateKey(_ context.Context, _ *cli.Command) error {
	fmt.Println("Generating age public and private key pair...")
	return keys.Generate(os.Stdout)
}

func runTestKeys(_ context.Context, cmd *cli.Command) error {
	fmt.Println("Testing age key pair compatibility...")

	cfg, err := config.Load(readGlobals(cmd).configPath)
	if err != nil {
		return err
	}
	if cfg.AgePublicKey == "" {
		return hlberrors.Configf("age_public_key is not set in the config")
	}

	return keys.Test(os.Stdout, cfg.AgePublicKey, cmd.String("private-key"))
}
