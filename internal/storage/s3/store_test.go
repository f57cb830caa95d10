package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sqlsage/sqlsage/internal/storage"
)

type fakeDocuments struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeDocuments) write(_ context.Context, key string, body io.Reader, _ int64, contentType string) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = data
	f.contentTypes[key] = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeDocuments) open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeDocuments) describe(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeDocuments) remove(_ context.Context, key string) error {
	if _, ok := f.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func TestStorePlacesDocumentsUnderPrefix(t *testing.T) {
	docs := newFakeDocuments()
	store := &Store{docs: docs, prefix: documentPrefix("/sqlsage/")}

	if _, err := store.Put(context.Background(), "databases.json", bytes.NewReader([]byte(`[]`)), 2, storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := docs.objects["sqlsage/databases.json"]; !ok {
		t.Fatalf("stored keys = %v", storedKeys(docs))
	}

	reader, err := store.Get(context.Background(), "databases.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = reader.Close()
}

func TestStoreDefaultsToJSONContentType(t *testing.T) {
	docs := newFakeDocuments()
	store := &Store{docs: docs}

	if _, err := store.Put(context.Background(), "all_databases_schema.json", bytes.NewReader([]byte(`[]`)), 2, storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got := docs.contentTypes["all_databases_schema.json"]; got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	store := &Store{docs: newFakeDocuments()}
	if _, err := store.Get(context.Background(), "missing.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestStoreRejectsNonFlatDocumentNames(t *testing.T) {
	store := &Store{docs: newFakeDocuments()}
	for _, name := range []string{"", "..", "nested/databases.json", "../../etc/passwd"} {
		if _, err := store.Get(context.Background(), name); err == nil || errors.Is(err, storage.ErrObjectNotFound) {
			t.Fatalf("Get(%q) err = %v, want name validation error", name, err)
		}
	}
}

func TestStoreDeleteMissingIsSilent(t *testing.T) {
	store := &Store{docs: newFakeDocuments()}
	if err := store.Delete(context.Background(), "databases.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestEndpointHostStripsScheme(t *testing.T) {
	cases := []struct {
		cfg    Config
		host   string
		secure bool
	}{
		{Config{Endpoint: "https://minio.internal:9000"}, "minio.internal:9000", true},
		{Config{Endpoint: "http://localhost:9000", UseSSL: true}, "localhost:9000", false},
		{Config{Endpoint: "localhost:9000", UseSSL: true}, "localhost:9000", true},
	}
	for _, tc := range cases {
		host, secure := endpointHost(tc.cfg)
		if host != tc.host || secure != tc.secure {
			t.Fatalf("endpointHost(%q) = %q, %v", tc.cfg.Endpoint, host, secure)
		}
	}
}

func storedKeys(docs *fakeDocuments) []string {
	out := make([]string, 0, len(docs.objects))
	for key := range docs.objects {
		out = append(out, key)
	}
	return out
}
