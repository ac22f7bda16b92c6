package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/store"
	"github.com/roach88/provstream/internal/testutil"
)

// fakeS3 is an in-memory S3 endpoint that only understands PutObject.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	status  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		body := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`
		return &http.Response{
			StatusCode: f.status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": {"application/xml"}},
			Request:    req,
		}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}, Request: req}, nil
	}

	body, _ := io.ReadAll(req.Body)
	if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
	}
	key := strings.TrimPrefix(req.URL.Path, "/")
	f.objects[key] = body
	f.types[key] = req.Header.Get("Content-Type")
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"ETag": {`"etag"`}},
		Request:    req,
	}, nil
}

func (f *fakeS3) object(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return string(b), ok
}

// decodeChunked strips aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n"
// repeated until a zero-size chunk.
func decodeChunked(b []byte) ([]byte, bool) {
	r := bufio.NewReader(bytes.NewReader(b))
	var out []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, false
		}
		line = strings.TrimRight(line, "\r\n")
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		n, err := strconv.ParseInt(line, 16, 64)
		if err != nil {
			return nil, false
		}
		if n == 0 {
			return out, true
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, false
		}
		out = append(out, chunk...)
		if _, err := r.Discard(2); err != nil {
			return nil, false
		}
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func newS3Sink(t *testing.T, rt http.RoundTripper, prefix string) *S3Sink {
	t.Helper()
	sink, err := NewS3Sink(context.Background(), S3Config{
		Bucket:          "provenance",
		Prefix:          prefix,
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: rt},
		MaxAttempts:     1,
	})
	require.NoError(t, err)
	return sink
}

func populatedStore(t *testing.T) store.Provenance {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })

	_, err := st.Append(ctx, "temperature", 1, rdf.NewGraph(testutil.Classified("R1", "Hot")))
	require.NoError(t, err)
	_, err = st.Append(ctx, "humidity", 1, rdf.NewGraph(testutil.Classified("R9", "Frozen")))
	require.NoError(t, err)
	_, err = st.Append(ctx, "temperature", 2, rdf.NewGraph(
		testutil.Classified("R3", "Hot"),
		testutil.Classified("R4", "Hot"),
	))
	require.NoError(t, err)
	return st
}

func TestExport_FSSink(t *testing.T) {
	st := populatedStore(t)
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	m, err := Export(context.Background(), st, "temperature", NewFSSink(dir), now)
	require.NoError(t, err)

	require.Len(t, m.Deltas, 2)
	assert.Equal(t, "temperature/00000001-w1.nt", m.Deltas[0].Key)
	assert.Equal(t, "temperature/00000003-w2.nt", m.Deltas[1].Key)
	assert.Equal(t, 2, m.Deltas[1].Facts)
	assert.Equal(t, 4, m.StoreSize)

	data, err := os.ReadFile(filepath.Join(dir, "temperature", "00000003-w2.nt"))
	require.NoError(t, err)
	g, err := rdf.ParseTurtle(string(data))
	require.NoError(t, err)
	assert.True(t, g.Has(testutil.Classified("R3", "Hot")))
	assert.True(t, g.Has(testutil.Classified("R4", "Hot")))

	raw, err := os.ReadFile(filepath.Join(dir, ManifestKey))
	require.NoError(t, err)
	var decoded Manifest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, m.Deltas, decoded.Deltas)
	assert.True(t, now.Equal(decoded.ExportedAt))
}

func TestExport_AllEngines(t *testing.T) {
	st := populatedStore(t)
	m, err := Export(context.Background(), st, "", NewFSSink(t.TempDir()), time.Now())
	require.NoError(t, err)

	require.Len(t, m.Deltas, 3)
	assert.Equal(t, "humidity/00000002-w1.nt", m.Deltas[1].Key)
}

func TestFSSink_RejectsEscapingKeys(t *testing.T) {
	sink := NewFSSink(t.TempDir())
	for _, key := range []string{"../x.nt", "a/../../x.nt"} {
		err := sink.Put(context.Background(), key, []byte("x"), ContentTypeNTriples)
		assert.True(t, ir.IsKind(err, ir.KindInput), "key %q: got %v", key, err)
	}
}

func TestS3Sink_Export(t *testing.T) {
	fake := newFakeS3()
	sink := newS3Sink(t, fake, "runs/2026")
	st := populatedStore(t)

	m, err := Export(context.Background(), st, "temperature", sink, time.Now())
	require.NoError(t, err)
	require.Len(t, m.Deltas, 2)

	body, ok := fake.object("provenance/runs/2026/temperature/00000001-w1.nt")
	require.True(t, ok)
	assert.Equal(t, testutil.Classified("R1", "Hot").String()+"\n", body)

	manifest, ok := fake.object("provenance/runs/2026/manifest.json")
	require.True(t, ok)
	assert.Contains(t, manifest, `"key": "temperature/00000003-w2.nt"`)
	assert.Equal(t, ContentTypeJSON, fake.types["provenance/runs/2026/manifest.json"])
}

func TestS3Sink_ObjectKey(t *testing.T) {
	assert.Equal(t, "a.nt", newS3Sink(t, newFakeS3(), "").ObjectKey("a.nt"))
	assert.Equal(t, "p/q/a.nt", newS3Sink(t, newFakeS3(), "p/q/").ObjectKey("a.nt"))
}

func TestS3Sink_ErrorKinds(t *testing.T) {
	fake := newFakeS3()
	fake.status = http.StatusForbidden
	err := newS3Sink(t, fake, "").Put(context.Background(), "a.nt", []byte("x"), ContentTypeNTriples)
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.KindResponse), "got %v", err)
	assert.Contains(t, err.Error(), "status 403")

	err = newS3Sink(t, failingTransport{}, "").Put(context.Background(), "a.nt", []byte("x"), ContentTypeNTriples)
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.KindConnectivity), "got %v", err)
}

func TestParseTarget(t *testing.T) {
	ctx := context.Background()
	creds := S3Config{AccessKeyID: "AKIA", SecretAccessKey: "SECRET", Region: "eu-west-2"}

	sink, err := ParseTarget(ctx, "out/archive", creds)
	require.NoError(t, err)
	fs, ok := sink.(*FSSink)
	require.True(t, ok)
	assert.Equal(t, "out/archive", fs.Dir())

	sink, err = ParseTarget(ctx, "s3://bucket/some/prefix", creds)
	require.NoError(t, err)
	s3sink, ok := sink.(*S3Sink)
	require.True(t, ok)
	assert.Equal(t, "bucket", s3sink.Bucket())
	assert.Equal(t, "some/prefix/x.nt", s3sink.ObjectKey("x.nt"))

	for _, bad := range []string{"", "s3://", "s3:///prefix"} {
		_, err := ParseTarget(ctx, bad, creds)
		assert.True(t, ir.IsKind(err, ir.KindConfiguration), "target %q: got %v", bad, err)
	}
}
