package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type memObjects struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
}

func (m *memObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Bucket+"/"+*in.Key] = data
	m.metadata[*in.Key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (m *memObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestRunKey(t *testing.T) {
	at := time.Date(2026, 2, 3, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	if got, want := RunKey("abc", at), "runs/2026/02/04/abc.json.gz"; got != want {
		t.Errorf("RunKey = %q; want %q", got, want)
	}
}

func TestArchiveAndFetchRun(t *testing.T) {
	mem := &memObjects{objects: map[string][]byte{}, metadata: map[string]map[string]string{}}
	c := &Client{s3: mem, bucket: "runs-bucket"}
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	report := map[string]any{"status": "completed", "articlesCreated": 4}
	if err := c.ArchiveRun(context.Background(), "run-1", at, report); err != nil {
		t.Fatalf("ArchiveRun: %v", err)
	}

	stored := mem.objects["runs-bucket/runs/2026/05/01/run-1.json.gz"]
	if len(stored) < 2 || stored[0] != 0x1f || stored[1] != 0x8b {
		t.Fatalf("stored object is not gzip: %x", stored)
	}
	if mem.metadata["runs/2026/05/01/run-1.json.gz"]["sha256"] == "" {
		t.Errorf("sha256 metadata missing")
	}

	data, err := c.FetchRun(context.Background(), "run-1", at)
	if err != nil {
		t.Fatalf("FetchRun: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["status"] != "completed" || got["articlesCreated"] != float64(4) {
		t.Errorf("report = %v", got)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := &Client{bucket: "b"}
	if c.Configured() {
		t.Fatalf("client without s3 reports configured")
	}
	if err := c.ArchiveRun(context.Background(), "x", time.Now(), nil); err != nil {
		t.Errorf("ArchiveRun on unconfigured client = %v", err)
	}
	if _, err := c.FetchRun(context.Background(), "x", time.Now()); err == nil {
		t.Errorf("FetchRun on unconfigured client should fail")
	}
}
