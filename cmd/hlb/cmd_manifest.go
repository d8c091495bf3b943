package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v3"

	"hlb/internal/config"
	"hlb/internal/crypto"
	hlberrors "hlb/internal/errors"
	"hlb/internal/manifest"
	"hlb/internal/remote"
	"hlb/internal/util"
)

func runManifest(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "manifest", false)
	if err != nil {
		return err
	}
	defer s.Close()

	push := cmd.Bool("push")
	if push && !s.cfg.S3.Enabled {
		return hlberrors.Configf("--push requires s3.enabled in the config")
	}

	plan, err := s.manager.Plan(ctx)
	if err != nil {
		return err
	}
	catalog := manifest.Build(s.target, plan, manifest.GetSystemInfo(ctx))

	if err := util.SetupDirectories(util.RunDir(s.cfg.StateDir, s.target.Name)); err != nil {
		return err
	}
	localPath := util.ManifestPath(s.cfg.StateDir, s.target.Name)
	hash, err := manifest.Write(localPath, catalog)
	if err != nil {
		return err
	}
	s.logger.Info("Manifest written", "path", localPath, "blake3", hash, "snapshots", len(catalog.Snapshots))
	fmt.Printf("Manifest: %s\nBLAKE3:   %s\n", localPath, hash)

	if !push {
		return nil
	}
	return pushManifest(ctx, s, catalog, localPath, hash)
}

// pushManifest uploads the manifest at localPath, age-encrypted when a
// public key is configured, and records the push.
func pushManifest(ctx context.Context, s *session, catalog *manifest.Catalog, localPath, hash string) error {
	backend, err := newBackend(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	if err := backend.VerifyCredentials(ctx); err != nil {
		return errors.Wrap(err, "AWS credentials verification failed")
	}

	body, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "failed to read manifest")
	}

	encrypted := s.cfg.AgePublicKey != ""
	if encrypted {
		if body, err = crypto.EncryptBytes(body, s.cfg.AgePublicKey); err != nil {
			return err
		}
	}

	remotePath := remote.ManifestPath(s.target.Name, catalog.Latest(), encrypted)
	objectHash, err := remote.Put(ctx, backend, body, remotePath)
	if err != nil {
		return err
	}

	ref := &manifest.Ref{
		Datetime:         time.Now().Unix(),
		Snapshot:         catalog.Latest(),
		Manifest:         localPath,
		Blake3Hash:       hash,
		ObjectBlake3Hash: objectHash,
		S3Path:           remotePath,
		Encrypted:        encrypted,
	}
	if err := manifest.WriteRef(util.RefPath(s.cfg.StateDir, s.target.Name), ref); err != nil {
		return errors.Wrap(err, "failed to record manifest push")
	}

	s.logger.Info("Manifest pushed", "bucket", s.cfg.S3.Bucket, "key", remotePath, "encrypted", encrypted)
	fmt.Printf("Pushed:   s3://%s/%s\n", s.cfg.S3.Bucket, remotePath)
	return nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Backend, error) {
	backend, err := remote.NewS3(ctx, cfg.S3, cfg.S3RetryAttempts(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize S3 backend")
	}
	return backend, nil
}
