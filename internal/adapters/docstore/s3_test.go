package docstore_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/stockbook/internal/adapters/docstore"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/test/helpers"
)

// fakeS3 is an in-memory bucket honouring conditional writes. Listings are
// paged one object at a time.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      []*s3.PutObjectInput
	created   []*s3.CreateBucketInput
	bucketOK  bool
	failWith  error
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, bucketOK: true}
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ETag: aws.String(etag(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.puts = append(f.puts, in)
	key := aws.ToString(in.Key)
	current, exists := f.objects[key]
	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	if in.IfMatch != nil && (!exists || aws.ToString(in.IfMatch) != etag(current)) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if ok && !strings.Contains(rest, aws.ToString(in.Delimiter)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start < len(keys) {
		k := keys[start]
		out.Contents = []types.Object{{
			Key:  aws.String(k),
			ETag: aws.String(etag(f.objects[k])),
			Size: aws.Int64(int64(len(f.objects[k]))),
		}}
		if start+1 < len(keys) {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(strconv.Itoa(start + 1))
		}
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketOK {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, in)
	f.bucketOK = true
	return &s3.CreateBucketOutput{}, nil
}

func newS3Store(client docstore.S3API) *docstore.S3Store {
	return docstore.NewS3StoreWithClient(client, docstore.S3Config{
		Bucket: "stockbook",
		Region: "eu-west-1",
		Prefix: "/shop/",
	}, helpers.TestLogger())
}

func TestS3Store_ConditionalWrites(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3Store(fake)

	_, err := store.Load(ctx, "inventory.json")
	require.ErrorIs(t, err, ports.ErrNotFound)

	v1, err := store.Save(ctx, "inventory.json", []byte(`{"items":[]}`), ports.NoVersion, "Create inventory")
	require.NoError(t, err)
	assert.Equal(t, ports.VersionToken(etag([]byte(`{"items":[]}`))), v1)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "*", aws.ToString(fake.puts[0].IfNoneMatch))
	assert.Nil(t, fake.puts[0].IfMatch)
	assert.Equal(t, "shop/inventory.json", aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "application/json", aws.ToString(fake.puts[0].ContentType))

	doc, err := store.Load(ctx, "inventory.json")
	require.NoError(t, err)
	assert.Equal(t, v1, doc.Version)

	v2, err := store.Save(ctx, "inventory.json", []byte(`{"items":[1]}`), v1, "Update")
	require.NoError(t, err)
	assert.Equal(t, string(v1), aws.ToString(fake.puts[1].IfMatch))

	t.Run("stale_etag_conflicts", func(t *testing.T) {
		_, err := store.Save(ctx, "inventory.json", []byte(`{}`), v1, "Stale")
		var conflict *ports.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, v1, conflict.Expected)
	})

	t.Run("create_only_conflicts", func(t *testing.T) {
		_, err := store.Save(ctx, "inventory.json", []byte(`{}`), ports.NoVersion, "Again")
		assert.ErrorIs(t, err, ports.ErrConflict)
	})

	t.Run("current_etag_still_wins", func(t *testing.T) {
		_, err := store.Save(ctx, "inventory.json", []byte(`{"items":[2]}`), v2, "Next")
		assert.NoError(t, err)
	})
}

func TestS3Store_ListPagesDirectChildren(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["shop/images/a.png"] = []byte("a")
	fake.objects["shop/images/b.png"] = []byte("bb")
	fake.objects["shop/images/c.png"] = []byte("ccc")
	fake.objects["shop/images/thumbs/a.png"] = []byte("t")
	fake.objects["shop/inventory.json"] = []byte("{}")
	store := newS3Store(fake)

	entries, err := store.List(ctx, "images")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "images/a.png", entries[0].Path)
	assert.Equal(t, int64(3), entries[2].Size)
	assert.Equal(t, 3, fake.listCalls)

	require.NoError(t, store.Delete(ctx, entries[1].Path, entries[1].Version, "Remove b.png"))
	_, ok := fake.objects["shop/images/b.png"]
	assert.False(t, ok)

	empty, err := store.List(ctx, "archive")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestS3Store_ErrorMapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "conditional_request_conflict",
			err:  &smithy.GenericAPIError{Code: "ConditionalRequestConflict"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ports.ErrConflict)
			},
		},
		{
			name: "not_found_code",
			err:  &smithy.GenericAPIError{Code: "NotFound"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ports.ErrNotFound)
			},
		},
		{
			name: "http_status_from_response",
			err: &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}},
				Err:      errors.New("service unavailable"),
			},
			check: func(t *testing.T, err error) {
				var te *ports.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
				assert.True(t, te.Temporary())
			},
		},
		{
			name: "slow_down_is_rate_limited",
			err:  &smithy.GenericAPIError{Code: "SlowDown"},
			check: func(t *testing.T, err error) {
				var te *ports.TransportError
				require.ErrorAs(t, err, &te)
				assert.True(t, te.RateLimited)
			},
		},
		{
			name: "network_failure",
			err:  errors.New("dial tcp: connection refused"),
			check: func(t *testing.T, err error) {
				var te *ports.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "load", te.Op)
				assert.True(t, te.Temporary())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeS3()
			fake.failWith = tt.err
			_, err := newS3Store(fake).Load(context.Background(), "inventory.json")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestS3Store_EnsureBucket(t *testing.T) {
	t.Run("existing_bucket", func(t *testing.T) {
		fake := newFakeS3()
		require.NoError(t, newS3Store(fake).EnsureBucket(context.Background()))
		assert.Empty(t, fake.created)
	})

	t.Run("missing_bucket_is_created", func(t *testing.T) {
		fake := newFakeS3()
		fake.bucketOK = false
		require.NoError(t, newS3Store(fake).EnsureBucket(context.Background()))
		require.Len(t, fake.created, 1)
		assert.Equal(t, types.BucketLocationConstraint("eu-west-1"),
			fake.created[0].CreateBucketConfiguration.LocationConstraint)
	})
}
