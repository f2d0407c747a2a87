package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

type stubAPI struct {
	objects map[string][]byte
	listErr error
	pages   int
}

func newStubAPI() *stubAPI {
	return &stubAPI{objects: make(map[string][]byte)}
}

func (s *stubAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (s *stubAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := s.objects[*in.Key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (s *stubAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(s.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (s *stubAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.pages++

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, *in.Prefix) {
			keys = append(keys, key)
		}
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func newTestStore(api objectAPI) *Store {
	return &Store{client: api, bucket: "screening", logger: zap.NewNop()}
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	store := newTestStore(api)
	ctx := context.Background()

	if err := store.Put(ctx, "resumes/job-1/alice.pdf", []byte("pdf bytes"), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := store.Get(ctx, "resumes/job-1/alice.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Fatalf("unexpected payload: %q", data)
	}
}

func TestPutOverwritesExisting(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	store := newTestStore(api)
	ctx := context.Background()

	for _, payload := range []string{"v1", "v2"} {
		if err := store.Put(ctx, "resumes/job-1/alice.pdf", []byte(payload), "application/pdf"); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	names, err := store.List(ctx, "resumes/job-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected a single object after re-upload, got %v", names)
	}
}

func TestListStripsPrefix(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	api.objects["resumes/job-1/alice.pdf"] = []byte("a")
	api.objects["resumes/job-1/bob.docx"] = []byte("b")
	api.objects["resumes/job-2/carol.pdf"] = []byte("c")

	store := newTestStore(api)

	names, err := store.List(context.Background(), "resumes/job-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
	for _, name := range names {
		if strings.Contains(name, "/") {
			t.Fatalf("prefix not stripped: %q", name)
		}
	}
}

func TestDeletePrefix(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	api.objects["resumes/job-1/alice.pdf"] = []byte("a")
	api.objects["resumes/job-1/bob.docx"] = []byte("b")
	api.objects["resumes/job-2/carol.pdf"] = []byte("c")

	store := newTestStore(api)

	if err := store.DeletePrefix(context.Background(), "resumes/job-1/"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if _, ok := api.objects["resumes/job-2/carol.pdf"]; !ok {
		t.Fatal("objects outside prefix must survive")
	}
	if len(api.objects) != 1 {
		t.Fatalf("expected only one surviving object, got %d", len(api.objects))
	}
}

func TestListPropagatesErrors(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	api.listErr = errors.New("bucket unavailable")

	store := newTestStore(api)

	if _, err := store.List(context.Background(), "resumes/job-1/"); err == nil {
		t.Fatal("expected error")
	}
}
