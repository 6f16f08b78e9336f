package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"amosync/pkg/amos"
	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *amos.CameraRecord {
	lat := 38.6
	added := time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC)
	return &amos.CameraRecord{ID: 65, Latitude: &lat, DateAdded: &added, Tags: []string{"city"}}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("read failed")
}

func TestLocal_WriteAndExists(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocal(root, logger.NewNopLogger())
	require.NoError(t, err)

	exists, err := s.Exists(ctx, 65)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Write(ctx, 65, "20160101_120000.jpg", strings.NewReader("jpeg")))

	// images alone do not mark the camera as synced
	exists, err = s.Exists(ctx, 65)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.WriteRecord(ctx, 65, sampleRecord()))
	exists, err = s.Exists(ctx, 65)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := os.ReadFile(filepath.Join(root, "65", "20160101_120000.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	raw, err := os.ReadFile(filepath.Join(root, "65", RecordName))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 65, decoded["id"])
	assert.Equal(t, "2015-03-01T00:00:00Z", decoded["date_added"])
	assert.Nil(t, decoded["longitude"])
}

func TestLocal_WriteOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, 1, "a.jpg", strings.NewReader("first")))
	require.NoError(t, s.Write(ctx, 1, "a.jpg", strings.NewReader("second")))

	data, err := os.ReadFile(filepath.Join(s.CameraDir(1), "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocal_NestedNames(t *testing.T) {
	s, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), 3, "sub/dir/x.jpg", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(s.CameraDir(3), "sub", "dir", "x.jpg"))
	assert.NoError(t, err)
}

func TestLocal_RejectsEscapingNames(t *testing.T) {
	s, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	for _, name := range []string{"../evil.jpg", "/abs.jpg", ""} {
		err := s.Write(context.Background(), 3, name, strings.NewReader("x"))
		assert.ErrorIs(t, err, errs.ErrStoreWrite, name)
	}
}

func TestLocal_FailedWriteLeavesNothing(t *testing.T) {
	s, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	err = s.Write(context.Background(), 9, "broken.jpg", failingReader{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStoreWrite)

	entries, err := os.ReadDir(s.CameraDir(9))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file should be removed")
}

func TestLocal_CancelledContext(t *testing.T) {
	s, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Write(ctx, 1, "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memBackend) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memBackend) Location() string { return "mem://test" }

func TestObjectStore_KeysAndExists(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	s := NewObjectStore(backend, "amos", nil)

	require.NoError(t, s.Write(ctx, 65, "20160101_120000.jpg", strings.NewReader("jpeg")))
	exists, err := s.Exists(ctx, 65)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.WriteRecord(ctx, 65, sampleRecord()))
	exists, err = s.Exists(ctx, 65)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Contains(t, backend.objects, "amos/65/20160101_120000.jpg")
	assert.Contains(t, backend.objects, "amos/65/info.json")
	assert.Equal(t, "image/jpeg", backend.types["amos/65/20160101_120000.jpg"])
	assert.Equal(t, "application/json", backend.types["amos/65/info.json"])
}

func TestObjectStore_PutFailureIsStoreWrite(t *testing.T) {
	backend := newMemBackend()
	backend.putErr = errors.New("access denied")
	testLog := logger.NewTestLogger()
	s := NewObjectStore(backend, "", testLog)

	err := s.Write(context.Background(), 1, "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, errs.ErrStoreWrite)
	assert.True(t, testLog.HasMessage("object upload failed"))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "65/info.json", ObjectKey("", 65, "info.json"))
	assert.Equal(t, "root/65/a.jpg", ObjectKey("root/", 65, "a.jpg"))
}

type fakeS3 struct {
	headErr  error
	uploaded []*s3.PutObjectInput
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.uploaded = append(f.uploaded, input)
	return &manager.UploadOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	b := newS3Backend("bucket", fake, fake)

	exists, err := b.Exists(ctx, "65/info.json")
	require.NoError(t, err)
	assert.True(t, exists)

	fake.headErr = &types.NotFound{}
	exists, err = b.Exists(ctx, "65/info.json")
	require.NoError(t, err)
	assert.False(t, exists)

	fake.headErr = errors.New("network down")
	_, err = b.Exists(ctx, "65/info.json")
	assert.Error(t, err)

	require.NoError(t, b.Put(ctx, "65/a.jpg", bytes.NewReader([]byte("x")), "image/jpeg"))
	require.Len(t, fake.uploaded, 1)
	assert.Equal(t, "bucket", *fake.uploaded[0].Bucket)
	assert.Equal(t, "65/a.jpg", *fake.uploaded[0].Key)
	assert.Equal(t, "s3://bucket", b.Location())
}

func TestNew_Local(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	s, err := New(context.Background(), config.StorageConfig{Backend: config.BackendLocal, Root: root}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = os.Stat(root)
	assert.NoError(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"}, nil)
	assert.ErrorIs(t, err, errs.ErrConfig)
}
