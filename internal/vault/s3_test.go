package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory stand-in for the S3 client and upload manager.
type fakeS3 struct {
	objects map[string][]byte
	uploads int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if *in.Bucket != "configs" {
		return nil, errors.New("forbidden")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.uploads++
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &manager.UploadOutput{}, nil
}

func TestS3Vault_PutGet(t *testing.T) {
	fake := newFakeS3()
	v := NewS3Vault("offsite", "configs", "cfgpush", fake, fake)

	data := "hostname router1"
	if err := v.PutContent("router1/abc", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	if _, ok := fake.objects["configs/cfgpush/router1/abc"]; !ok {
		t.Fatalf("object not stored under prefix; have %v", fake.objects)
	}

	var buf bytes.Buffer
	if err := v.GetContent("router1/abc", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("content = %q, want %q", buf.String(), data)
	}
}

func TestS3Vault_PutContent_Idempotent(t *testing.T) {
	fake := newFakeS3()
	v := NewS3Vault("offsite", "configs", "", fake, fake)

	for i := 0; i < 2; i++ {
		if err := v.PutContent("r/k", strings.NewReader("abc"), 3); err != nil {
			t.Fatalf("PutContent() #%d error = %v", i+1, err)
		}
	}
	if fake.uploads != 1 {
		t.Errorf("uploads = %d, want 1", fake.uploads)
	}
}

func TestS3Vault_Errors(t *testing.T) {
	fake := newFakeS3()
	v := NewS3Vault("offsite", "configs", "", fake, fake)

	t.Run("size mismatch", func(t *testing.T) {
		if err := v.PutContent("r/short", strings.NewReader("abc"), 10); err == nil {
			t.Error("PutContent() expected size mismatch error")
		}
	})

	t.Run("missing object", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.GetContent("r/missing", &buf)
		if err == nil || !strings.Contains(err.Error(), "content not found") {
			t.Errorf("GetContent() error = %v, want content not found", err)
		}
	})

	t.Run("inaccessible bucket", func(t *testing.T) {
		other := NewS3Vault("offsite", "other", "", fake, fake)
		if err := other.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error")
		}
		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}
