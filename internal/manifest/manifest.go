// Package manifest renders a target's catalog and retention outcome as a
// YAML document that can be kept locally or offloaded.
package manifest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"hlb/internal/config"
	"hlb/internal/crypto"
	"hlb/internal/lifecycle"
	"hlb/internal/retention"
)

func GetSystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{Hostname: "unknown", OS: runtime.GOOS, Rsync: "unknown"}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
				info.OS = strings.Trim(v, `"`)
				break
			}
		}
	}
	if out, err := exec.CommandContext(ctx, "rsync", "--version").Output(); err == nil {
		first, _, _ := strings.Cut(string(out), "\n")
		info.Rsync = strings.TrimSpace(first)
	}

	return info
}

// Build turns a retention plan into a catalog manifest.
func Build(t *config.Target, plan *lifecycle.Plan, system SystemInfo) *Catalog {
	c := &Catalog{
		Datetime:    plan.Now.Unix(),
		System:      system,
		Target:      t.Name,
		Source:      t.Source,
		Destination: t.Destination.String(),
		Retention:   t.Retention,
		Snapshots:   make([]Entry, len(plan.Snapshots)),
	}

	for i, id := range plan.Snapshots {
		d := plan.Decisions[i]
		e := Entry{
			Snapshot: id.String(),
			Datetime: id.Time().Unix(),
			Tier:     plan.Tiers[i].String(),
			Decision: decision(d),
		}
		if d.Prune {
			e.Reason = d.Reason()
		}
		c.Snapshots[i] = e
	}
	return c
}

func decision(d retention.Decision) string {
	if d.Prune {
		return "prune"
	}
	return "keep"
}

// Latest returns the newest snapshot listed, or "" for an empty catalog.
func (c *Catalog) Latest() string {
	if len(c.Snapshots) == 0 {
		return ""
	}
	return c.Snapshots[len(c.Snapshots)-1].Snapshot
}

// Marshal encodes the catalog and returns the BLAKE3 hash of the encoding.
func Marshal(c *Catalog) ([]byte, string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to encode manifest")
	}
	hash, err := crypto.BLAKE3(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return data, hash, nil
}

// Write stores the catalog at filename and returns its BLAKE3 hash.
func Write(filename string, c *Catalog) (string, error) {
	data, hash, err := Marshal(c)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write manifest")
	}
	return hash, nil
}

func Read(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %s", filename)
	}
	return &c, nil
}

func WriteRef(filename string, ref *Ref) error {
	data, err := yaml.Marshal(ref)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

func ReadRef(filename string) (*Ref, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var ref Ref
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}
