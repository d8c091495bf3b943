package remote

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlb/internal/crypto"
)

func TestValidateStorageClass(t *testing.T) {
	tests := []struct {
		name         string
		storageClass types.StorageClass
		wantErr      bool
	}{
		{name: "STANDARD is accessible", storageClass: types.StorageClassStandard},
		{name: "STANDARD_IA is accessible", storageClass: types.StorageClassStandardIa},
		{name: "INTELLIGENT_TIERING is accessible", storageClass: types.StorageClassIntelligentTiering},
		{name: "GLACIER is not accessible", storageClass: types.StorageClassGlacier, wantErr: true},
		{name: "DEEP_ARCHIVE is not accessible", storageClass: types.StorageClassDeepArchive, wantErr: true},
		{name: "empty string is accessible", storageClass: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStorageClass(tt.storageClass)
			if tt.wantErr {
				assert.ErrorContains(t, err, "not immediately accessible")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestManifestPath(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		snapshot  string
		encrypted bool
		want      string
	}{
		{name: "plain", target: "home", snapshot: "2024-06-20-110000", want: "manifests/home/2024-06-20-110000.yaml"},
		{name: "encrypted", target: "home", snapshot: "2024-06-20-110000", encrypted: true, want: "manifests/home/2024-06-20-110000.yaml.age"},
		{name: "empty catalog", target: "nas", want: "manifests/nas/empty.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ManifestPath(tt.target, tt.snapshot, tt.encrypted))
		})
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "backups/manifests/home/a.yaml", objectKey("backups", "manifests/home/a.yaml"))
	assert.Equal(t, "manifests/home/a.yaml", objectKey("", "manifests/home/a.yaml"))
	assert.Equal(t, "backups/manifests/home/a.yaml", objectKey("backups/", "manifests/home/a.yaml"))
}

type headOnly struct {
	info *ObjectInfo
	err  error
}

func (h headOnly) Upload(context.Context, io.Reader, string, string) error { return nil }
func (h headOnly) Head(context.Context, string) (*ObjectInfo, error)       { return h.info, h.err }
func (h headOnly) VerifyCredentials(context.Context) error                 { return nil }

func TestVerifyUpload(t *testing.T) {
	tests := []struct {
		name    string
		backend headOnly
		wantErr string
	}{
		{name: "match", backend: headOnly{info: &ObjectInfo{Size: 42, Blake3: "abc"}}},
		{name: "size mismatch", backend: headOnly{info: &ObjectInfo{Size: 41, Blake3: "abc"}}, wantErr: "has 41 bytes, expected 42"},
		{name: "checksum mismatch", backend: headOnly{info: &ObjectInfo{Size: 42}}, wantErr: "checksum"},
		{name: "head fails", backend: headOnly{err: errors.New("not found")}, wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyUpload(context.Background(), tt.backend, "manifests/home/a.yaml", 42, "abc")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// memBackend stores objects with their metadata hash.
type memBackend struct {
	objects map[string][]byte
	hashes  map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, hashes: map[string]string{}}
}

func (m *memBackend) Upload(_ context.Context, body io.Reader, remotePath, checksumHash string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[remotePath] = data
	m.hashes[remotePath] = checksumHash
	return nil
}

func (m *memBackend) Head(_ context.Context, remotePath string) (*ObjectInfo, error) {
	data, ok := m.objects[remotePath]
	if !ok {
		return nil, errors.Newf("%s not found", remotePath)
	}
	return &ObjectInfo{Size: int64(len(data)), Blake3: m.hashes[remotePath]}, nil
}

func (m *memBackend) VerifyCredentials(context.Context) error { return nil }

func TestPutTagsUploadedBody(t *testing.T) {
	plain := []byte("target: home\nsnapshots: []\n")
	plainHash, err := crypto.BLAKE3(bytes.NewReader(plain))
	require.NoError(t, err)

	// Stand-in for an age-encrypted manifest: different bytes than the plaintext.
	body := append([]byte("age-encryption.org/v1\n"), plain...)

	b := newMemBackend()
	hash, err := Put(context.Background(), b, body, "manifests/home/a.yaml.age")
	require.NoError(t, err)

	bodyHash, err := crypto.BLAKE3(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, bodyHash, hash)
	assert.NotEqual(t, plainHash, hash)
	assert.Equal(t, hash, b.hashes["manifests/home/a.yaml.age"])
	assert.Equal(t, body, b.objects["manifests/home/a.yaml.age"])
}

func TestPutUploadFailure(t *testing.T) {
	_, err := Put(context.Background(), headOnly{err: errors.New("not found")}, []byte("x"), "manifests/home/a.yaml")
	assert.ErrorContains(t, err, "upload verification failed")
}
