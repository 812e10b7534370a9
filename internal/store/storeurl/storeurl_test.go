package storeurl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Location
	}{
		{"s3://lab-archive/2021/run1", Location{Scheme: "s3", Bucket: "lab-archive", Prefix: "2021/run1/"}},
		{"s3://lab-archive", Location{Scheme: "s3", Bucket: "lab-archive"}},
		{"gs://lab-archive/data/", Location{Scheme: "gs", Bucket: "lab-archive", Prefix: "data/"}},
		{"/srv/archive", Location{Scheme: "file", Path: "/srv/archive"}},
		{"file:///srv/archive", Location{Scheme: "file", Path: "/srv/archive"}},
		{"./archive", Location{Scheme: "file", Path: "./archive"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{"", "ftp://host/x", "s3:///nobucket"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestOpenCached_Disk(t *testing.T) {
	ctx := context.Background()
	st, err := OpenCached(ctx, t.TempDir(), 8, nil)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.WriteObject(ctx, "a.bin", []byte("x")))
	for i := 0; i < 3; i++ {
		data, err := st.ReadObject(ctx, "a.bin")
		require.NoError(t, err)
		assert.Equal(t, "x", string(data))
	}
	assert.Equal(t, int64(2), st.Stats().Hits)
	assert.Equal(t, int64(1), st.Stats().Misses)
}

func TestOpenCached_InvalidCapacity(t *testing.T) {
	_, err := OpenCached(context.Background(), t.TempDir(), 0, nil)
	assert.Error(t, err)
}
