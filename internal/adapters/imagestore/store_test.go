package imagestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/ports"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	deletes []*s3.DeleteObjectInput
	heads   int
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)

	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.bodies = append(f.bodies, string(b))
	}

	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, f.err
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.heads++
	return &s3.HeadBucketOutput{}, f.err
}

func newTestStore(client *fakeS3) *Store {
	s := newStore(client, Config{
		Bucket:        "gourmet-images",
		PublicBaseURL: "https://images.example.com",
		MaxSize:       1 << 20,
	})
	s.now = func() time.Time { return time.UnixMilli(1715900000000) }

	return s
}

func TestStore_Put(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	url, err := store.Put(context.Background(), ports.Image{
		Name:        "ramen.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("jpeg"),
	})

	require.NoError(t, err)
	assert.Equal(t, "https://images.example.com/1715900000000-ramen.jpg", url)

	require.Len(t, client.puts, 1)
	in := client.puts[0]
	assert.Equal(t, "gourmet-images", aws.ToString(in.Bucket))
	assert.Equal(t, "1715900000000-ramen.jpg", aws.ToString(in.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(in.ContentLength))
	assert.Equal(t, []string{"jpeg"}, client.bodies)
}

func TestStore_PutStripsDirectories(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	url, err := store.Put(context.Background(), ports.Image{Name: `C:\photos\my ramen.png`, Body: strings.NewReader("")})

	require.NoError(t, err)
	assert.Equal(t, "1715900000000-my ramen.png", aws.ToString(client.puts[0].Key))
	assert.Equal(t, "https://images.example.com/1715900000000-my%20ramen.png", url)
}

func TestStore_PutTooLarge(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	_, err := store.Put(context.Background(), ports.Image{Name: "big.jpg", Size: 2 << 20, Body: strings.NewReader("")})

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, client.puts)
}

func TestStore_PutFailure(t *testing.T) {
	cause := errors.New("access denied")
	store := newTestStore(&fakeS3{err: cause})

	_, err := store.Put(context.Background(), ports.Image{Name: "a.jpg", Body: strings.NewReader("x")})

	require.ErrorIs(t, err, domain.ErrStorage)
	require.ErrorIs(t, err, cause)
}

func TestStore_DeleteUsesLastSegment(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	require.NoError(t, store.Delete(context.Background(), "https://images.example.com/1715900000000-my%20ramen.png"))

	require.Len(t, client.deletes, 1)
	assert.Equal(t, "gourmet-images", aws.ToString(client.deletes[0].Bucket))
	assert.Equal(t, "1715900000000-my ramen.png", aws.ToString(client.deletes[0].Key))
}

func TestStore_PutThenDeleteRoundTrip(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	url, err := store.Put(context.Background(), ports.Image{Name: "gyoza plate.webp", Body: strings.NewReader("x")})
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), url))
	assert.Equal(t, aws.ToString(client.puts[0].Key), aws.ToString(client.deletes[0].Key))
}

func TestStore_DeleteRejectsURLWithoutKey(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	err := store.Delete(context.Background(), "https://images.example.com/")

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, client.deletes)
}

func TestStore_DeleteFailure(t *testing.T) {
	store := newTestStore(&fakeS3{err: errors.New("timeout")})

	err := store.Delete(context.Background(), "https://images.example.com/1-a.jpg")

	assert.True(t, domain.IsStorage(err))
}

func TestStore_HealthCheck(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	assert.Equal(t, "image-store", store.Name())
	require.NoError(t, store.Check(context.Background()))
	assert.Equal(t, 1, client.heads)

	client.err = errors.New("no such bucket")
	assert.Error(t, store.Check(context.Background()))
}

func TestDisabled(t *testing.T) {
	var store ports.ImageStore = Disabled{}

	_, err := store.Put(context.Background(), ports.Image{Name: "a.jpg"})
	assert.True(t, domain.IsUnavailable(err))

	assert.NoError(t, store.Delete(context.Background(), "https://images.example.com/1-a.jpg"))
}

func TestNew_BuildsClient(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "gourmet-images",
		Endpoint:        "https://account.r2.cloudflarestorage.com",
		Region:          "auto",
		PublicBaseURL:   "https://images.example.com/",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://images.example.com/", store.baseURL)
	assert.Equal(t, "gourmet-images", store.bucket)
}
