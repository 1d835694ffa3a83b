package snapshot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
)

type fakeS3 struct {
	objects map[string][]byte
	order   []string
	failOn  string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if *in.Key == f.failOn {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[*in.Key] = body
	f.order = append(f.order, "s3:"+*in.Key)
	return &s3.PutObjectOutput{}, nil
}

type fakeSSM struct {
	values map[string]string
	s3     *fakeS3
	err    error
}

func (f *fakeSSM) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[*in.Name] = *in.Value
	f.s3.order = append(f.s3.order, "ssm:"+*in.Name)
	return &ssm.PutParameterOutput{}, nil
}

type stubSigner struct{ err error }

func (s stubSigner) Sign(_ context.Context, msg []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("sig:" + cryptoutil.SHA256Hex(msg)), nil
}

func newTestPublisher(signer Signer) (*Publisher, *fakeS3, *fakeSSM) {
	s3f := &fakeS3{}
	ssmf := &fakeSSM{s3: s3f}
	return &Publisher{
		opts: PublisherOptions{
			Bucket:   "site-artifacts",
			Prefix:   "hcf/snapshots",
			SSMParam: "/hcf/content/release",
			Signer:   signer,
		},
		s3:     s3f,
		ssm:    ssmf,
		logger: log.Nop(),
	}, s3f, ssmf
}

func TestPublish_UploadsThenMovesPointer(t *testing.T) {
	p, s3f, ssmf := newTestPublisher(stubSigner{})
	data := []byte(`{"fetchedAt":"2025-01-01T00:00:00.000Z"}`)

	out, err := p.Publish(context.Background(), data, "2025-01-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	hash := cryptoutil.SHA256Hex(data)
	if out.Hash != hash || out.Key != "hcf/snapshots/"+hash+".json" {
		t.Fatalf("Published = %+v", out)
	}
	if out.URI() != "s3://site-artifacts/hcf/snapshots/"+hash+".json" {
		t.Fatalf("URI = %s", out.URI())
	}
	if string(s3f.objects[out.Key]) != string(data) {
		t.Fatal("uploaded bytes differ from input")
	}
	if string(s3f.objects[out.SignatureKey]) != "sig:"+hash {
		t.Fatal("signature object missing")
	}
	if ssmf.values["/hcf/content/release"] != hash {
		t.Fatalf("ssm value = %q", ssmf.values["/hcf/content/release"])
	}

	want := []string{"s3:" + out.Key, "s3:" + out.SignatureKey, "ssm:/hcf/content/release"}
	if len(s3f.order) != len(want) {
		t.Fatalf("order = %v", s3f.order)
	}
	for i := range want {
		if s3f.order[i] != want[i] {
			t.Fatalf("order = %v, want %v", s3f.order, want)
		}
	}
}

func TestPublish_NoSigner(t *testing.T) {
	p, s3f, _ := newTestPublisher(nil)
	out, err := p.Publish(context.Background(), []byte("{}"), "")
	if err != nil {
		t.Fatal(err)
	}
	if out.SignatureKey != "" || len(s3f.objects) != 1 {
		t.Fatalf("unexpected signature upload: %+v %v", out, s3f.order)
	}
}

func TestPublish_FailuresLeavePointer(t *testing.T) {
	p, s3f, ssmf := newTestPublisher(stubSigner{err: errors.New("kms unavailable")})
	if _, err := p.Publish(context.Background(), []byte("{}"), ""); err == nil {
		t.Fatal("expected signing error")
	}
	if len(ssmf.values) != 0 {
		t.Fatal("pointer must not move when signing fails")
	}

	p, s3f, ssmf = newTestPublisher(nil)
	s3f.failOn = ObjectKey("hcf/snapshots", cryptoutil.SHA256Hex([]byte("{}")))
	if _, err := p.Publish(context.Background(), []byte("{}"), ""); err == nil {
		t.Fatal("expected upload error")
	}
	if len(ssmf.values) != 0 {
		t.Fatal("pointer must not move when upload fails")
	}
}

func TestNewPublisher_Validation(t *testing.T) {
	if _, err := NewPublisher(context.Background(), PublisherOptions{SSMParam: "/x"}); err == nil {
		t.Fatal("missing bucket should fail")
	}
	if _, err := NewPublisher(context.Background(), PublisherOptions{Bucket: "b"}); err == nil {
		t.Fatal("missing ssm param should fail")
	}
}
