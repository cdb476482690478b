package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket that pages List results two keys at a time.
type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	api := newFakeS3()
	store := NewS3StoreWithAPI(api, "ict-attendances", "ap-south-1")
	ctx := context.Background()

	if err := store.Put(ctx, "reports/a.xlsx", []byte("xlsx"), ContentTypeXLSX); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if api.types["reports/a.xlsx"] != ContentTypeXLSX {
		t.Errorf("ContentType = %q", api.types["reports/a.xlsx"])
	}

	got, err := store.Get(ctx, "reports/a.xlsx")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "xlsx" {
		t.Errorf("Get() = %q", got)
	}
}

func TestS3Store_GetMissing(t *testing.T) {
	store := NewS3StoreWithAPI(newFakeS3(), "b", "r")
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestS3Store_ListPaginates(t *testing.T) {
	api := newFakeS3()
	for _, k := range []string{"CS/", "CS/1_A.png", "CS/2_B.png", "CS/3_C.jpg", "CS/4_D.jpeg", "EE/5_E.png"} {
		api.objects[k] = []byte("x")
	}
	store := NewS3StoreWithAPI(api, "b", "r")

	keys, err := store.List(context.Background(), "CS/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"CS/", "CS/1_A.png", "CS/2_B.png", "CS/3_C.jpg", "CS/4_D.jpeg"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List() = %v, want %v", keys, want)
	}
}

func TestS3Store_URL(t *testing.T) {
	store := NewS3StoreWithAPI(newFakeS3(), "ict-attendances", "ap-south-1")
	want := "https://ict-attendances.s3.ap-south-1.amazonaws.com/reports/x.xlsx"
	if got := store.URL("reports/x.xlsx"); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
