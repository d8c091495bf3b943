package manifest

import "hlb/internal/retention"

type SystemInfo struct {
	Hostname string `yaml:"hostname"`
	OS       string `yaml:"os"`
	Rsync    string `yaml:"rsync"`
}

// Entry is one snapshot of the catalog with its retention outcome.
type Entry struct {
	Snapshot string `yaml:"snapshot"`
	Datetime int64  `yaml:"datetime"`
	Tier     string `yaml:"tier"`
	Decision string `yaml:"decision"`
	Reason   string `yaml:"reason,omitempty"`
}

// Catalog is the manifest of one target's destination at one instant.
type Catalog struct {
	Datetime    int64            `yaml:"datetime"`
	System      SystemInfo       `yaml:"system"`
	Target      string           `yaml:"target"`
	Source      string           `yaml:"source"`
	Destination string           `yaml:"destination"`
	Retention   retention.Policy `yaml:"retention"`
	Snapshots   []Entry          `yaml:"snapshots"`
}

// Ref records where a catalog manifest was last pushed.
type Ref struct {
	Datetime   int64  `yaml:"datetime"`
	Snapshot   string `yaml:"snapshot"`
	Manifest   string `yaml:"manifest"`
	Blake3Hash string `yaml:"blake3_hash"`
	// ObjectBlake3Hash is the hash of the uploaded body, which differs from
	// Blake3Hash when the manifest was encrypted.
	ObjectBlake3Hash string `yaml:"object_blake3_hash"`
	S3Path           string `yaml:"s3_path"`
	Encrypted        bool   `yaml:"encrypted"`
}
