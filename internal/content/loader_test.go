package content

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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
)

const (
	testBucket   = "site-artifacts"
	testS3Prefix = "hcf/snapshots"
	testSSMParam = "/hcf/content/release"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakeSSM struct {
	mu    sync.Mutex
	value string
	err   error
}

func (f *fakeSSM) set(value string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value, f.err = value, err
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{
		Name:  in.Name,
		Value: aws.String(f.value),
	}}, nil
}

// fakeVerifier accepts signatures of the form "ok:<sha256 of message>".
type fakeVerifier struct{}

func (fakeVerifier) VerifySignature(_ context.Context, msg, sig []byte) error {
	if string(sig) != "ok:"+cryptoutil.SHA256Hex(msg) {
		return errors.New("signature mismatch")
	}
	return nil
}

func newTestLoader(s3f *fakeS3, ssmf *fakeSSM, verifier SignatureVerifier, requireSig bool) *Loader {
	return &Loader{
		opts: LoaderOptions{
			SSMParam:         testSSMParam,
			S3Bucket:         testBucket,
			S3Prefix:         testS3Prefix,
			RequireSignature: requireSig,
		},
		s3:       s3f,
		ssm:      ssmf,
		verifier: verifier,
		logger:   log.Nop(),
	}
}

// publishFixture stores an encoded document the way the snapshot CLI
// publishes it and returns the hash.
func publishFixture(t *testing.T, s3f *fakeS3, doc *snapshot.Document) (string, []byte) {
	t.Helper()
	data, err := snapshot.Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	hash := cryptoutil.SHA256Hex(data)
	s3f.put(snapshot.ObjectKey(testS3Prefix, hash), data)
	return hash, data
}

func TestNewLoader_Validation(t *testing.T) {
	tests := []LoaderOptions{
		{S3Bucket: "b"},
		{SSMParam: "/p"},
		{},
		{SSMParam: "/p", S3Bucket: "b", RequireSignature: true},
	}
	for i, opts := range tests {
		if _, err := NewLoader(context.Background(), opts); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestFetchCurrentHash(t *testing.T) {
	hash := cryptoutil.SHA256Hex([]byte("x"))
	ssmf := &fakeSSM{}
	l := newTestLoader(newFakeS3(), ssmf, nil, false)

	ssmf.set("  "+strings.ToUpper(hash)+"\n", nil)
	got, err := l.FetchCurrentHash(context.Background())
	if err != nil || got != hash {
		t.Fatalf("FetchCurrentHash = %q, %v", got, err)
	}

	ssmf.set("not-a-hash", nil)
	if _, err := l.FetchCurrentHash(context.Background()); err == nil {
		t.Fatal("expected error for malformed pointer")
	}

	ssmf.set("", errors.New("throttled"))
	if _, err := l.FetchCurrentHash(context.Background()); err == nil || !strings.Contains(err.Error(), testSSMParam) {
		t.Fatalf("error should name the parameter: %v", err)
	}
}

func TestLoad_Unsigned(t *testing.T) {
	s3f, ssmf := newFakeS3(), &fakeSSM{}
	hash, data := publishFixture(t, s3f, validDoc(t))
	ssmf.set(hash, nil)

	snap, err := newTestLoader(s3f, ssmf, nil, false).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Meta.SHA256 != hash || snap.Meta.Source != SourceS3 || snap.Meta.Signed {
		t.Fatalf("Meta = %+v", snap.Meta)
	}
	if snap.Meta.Location != "s3://"+testBucket+"/"+testS3Prefix+"/"+hash+".json" {
		t.Fatalf("Location = %q", snap.Meta.Location)
	}
	if snap.Meta.FetchedAt != "2025-03-01T09:30:00.000Z" {
		t.Fatalf("FetchedAt = %q", snap.Meta.FetchedAt)
	}
	if _, ok := snap.Store.BySlug("info-pages", "faq"); !ok {
		t.Fatal("store should contain the published document")
	}
	if cryptoutil.SHA256Hex(data) != hash {
		t.Fatal("fixture hash mismatch")
	}
}

func TestLoadHash_ChecksumMismatch(t *testing.T) {
	s3f := newFakeS3()
	hash, _ := publishFixture(t, s3f, validDoc(t))
	s3f.put(snapshot.ObjectKey(testS3Prefix, hash), []byte(`{"tampered":true}`))

	_, err := newTestLoader(s3f, &fakeSSM{}, nil, false).LoadHash(context.Background(), hash)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadHash_MissingObject(t *testing.T) {
	_, err := newTestLoader(newFakeS3(), &fakeSSM{}, nil, false).LoadHash(context.Background(), cryptoutil.SHA256Hex([]byte("gone")))
	if err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestLoadHash_Signatures(t *testing.T) {
	t.Run("valid signature", func(t *testing.T) {
		s3f := newFakeS3()
		hash, data := publishFixture(t, s3f, validDoc(t))
		s3f.put(snapshot.SignatureKey(testS3Prefix, hash), []byte("ok:"+cryptoutil.SHA256Hex(data)))

		snap, err := newTestLoader(s3f, &fakeSSM{}, fakeVerifier{}, true).LoadHash(context.Background(), hash)
		if err != nil {
			t.Fatalf("LoadHash: %v", err)
		}
		if !snap.Meta.Signed {
			t.Fatal("snapshot should be marked signed")
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		s3f := newFakeS3()
		hash, _ := publishFixture(t, s3f, validDoc(t))
		s3f.put(snapshot.SignatureKey(testS3Prefix, hash), []byte("forged"))

		if _, err := newTestLoader(s3f, &fakeSSM{}, fakeVerifier{}, false).LoadHash(context.Background(), hash); err == nil {
			t.Fatal("bad signature must fail even when not required")
		}
	})

	t.Run("missing signature required", func(t *testing.T) {
		s3f := newFakeS3()
		hash, _ := publishFixture(t, s3f, validDoc(t))
		if _, err := newTestLoader(s3f, &fakeSSM{}, fakeVerifier{}, true).LoadHash(context.Background(), hash); err == nil {
			t.Fatal("missing signature must fail when required")
		}
	})

	t.Run("missing signature optional", func(t *testing.T) {
		s3f := newFakeS3()
		hash, _ := publishFixture(t, s3f, validDoc(t))
		snap, err := newTestLoader(s3f, &fakeSSM{}, fakeVerifier{}, false).LoadHash(context.Background(), hash)
		if err != nil {
			t.Fatalf("LoadHash: %v", err)
		}
		if snap.Meta.Signed {
			t.Fatal("snapshot should be unsigned")
		}
	})
}

func TestLoadIntoManager(t *testing.T) {
	s3f, ssmf := newFakeS3(), &fakeSSM{}
	hash, _ := publishFixture(t, s3f, validDoc(t))
	ssmf.set(hash, nil)
	mgr := NewManager()

	if err := newTestLoader(s3f, ssmf, nil, false).LoadIntoManager(context.Background(), mgr, DefaultValidationOptions()); err != nil {
		t.Fatal(err)
	}
	if mgr.ContentHash() != hash {
		t.Fatalf("ContentHash = %q", mgr.ContentHash())
	}

	ssmf.set("", errors.New("down"))
	if err := newTestLoader(s3f, ssmf, nil, false).LoadIntoManager(context.Background(), mgr, DefaultValidationOptions()); err == nil {
		t.Fatal("expected error")
	}
	if mgr.ContentHash() != hash {
		t.Fatal("failed load must not replace content")
	}
}

func TestLoadIntoManager_RejectsInvalid(t *testing.T) {
	s3f, ssmf := newFakeS3(), &fakeSSM{}
	good, _ := publishFixture(t, s3f, validDoc(t))
	ssmf.set(good, nil)
	mgr := NewManager()
	loader := newTestLoader(s3f, ssmf, nil, false)
	if err := loader.LoadIntoManager(context.Background(), mgr, DefaultValidationOptions()); err != nil {
		t.Fatal(err)
	}

	noURL := validDoc(t)
	noURL.StrapiURL = ""
	bad, _ := publishFixture(t, s3f, noURL)
	ssmf.set(bad, nil)
	err := loader.LoadIntoManager(context.Background(), mgr, DefaultValidationOptions())
	if err == nil || !strings.Contains(err.Error(), "strapiUrl is missing") {
		t.Fatalf("LoadIntoManager = %v, want validation error", err)
	}
	if mgr.ContentHash() != good {
		t.Fatal("rejected release replaced current content")
	}

	ssmf.set(good, nil)
	err = loader.LoadIntoManager(context.Background(), NewManager(), ValidationOptions{MinInfoPages: 5})
	if err == nil || !strings.Contains(err.Error(), "minimum is 5") {
		t.Fatalf("LoadIntoManager with MinInfoPages = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strapi-content.json")
	w, err := snapshot.WriteFile(path, validDoc(t))
	if err != nil {
		t.Fatal(err)
	}

	snap, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if snap.Meta.SHA256 != w.SHA256 || snap.Meta.Source != SourceFile || snap.Meta.Location != path {
		t.Fatalf("Meta = %+v, written %+v", snap.Meta, w)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad, nil); err == nil {
		t.Fatal("expected error for malformed file")
	}
}
