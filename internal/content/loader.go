package content

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// maxObjectBytes bounds a snapshot download.
const maxObjectBytes = 64 << 20

type s3GetAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type ssmGetAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SignatureVerifier checks a detached signature over a snapshot's bytes.
// *cryptoutil.KMSVerifier implements it.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

type LoaderOptions struct {
	Logger log.Logger

	// SSM parameter holding the sha256 of the current snapshot
	SSMParam string

	// S3 location of snapshots: s3://{bucket}/{prefix}/{hash}.json
	S3Bucket string
	S3Prefix string

	// SigningKeyARN enables signature verification against
	// {hash}.json.sig. RequireSignature fails loads with no signature
	// object; otherwise a missing signature is logged and tolerated.
	SigningKeyARN    string
	RequireSignature bool

	// AWS config (uses default if nil)
	AWSConfig *aws.Config
}

// Loader fetches snapshots published by the snapshot CLI.
type Loader struct {
	opts     LoaderOptions
	ssm      ssmGetAPI
	s3       s3GetAPI
	verifier SignatureVerifier
	logger   log.Logger
}

func NewLoader(ctx context.Context, opts LoaderOptions) (*Loader, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.RequireSignature && opts.SigningKeyARN == "" {
		return nil, xerrors.New("RequireSignature needs SigningKeyARN")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		var err error
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	l := &Loader{
		opts:   opts,
		ssm:    ssm.NewFromConfig(awsCfg),
		s3:     s3.NewFromConfig(awsCfg),
		logger: opts.Logger,
	}
	if opts.SigningKeyARN != "" {
		l.verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), opts.SigningKeyARN)
	}
	return l, nil
}

// FetchCurrentHash reads the release pointer from SSM.
func (l *Loader) FetchCurrentHash(ctx context.Context) (string, error) {
	out, err := l.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", l.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", l.opts.SSMParam)
	}

	hash := strings.ToLower(strings.TrimSpace(*out.Parameter.Value))
	if !cryptoutil.ValidSHA256Hex(hash) {
		return "", xerrors.Newf("SSM parameter %s is not a sha256 hex digest", l.opts.SSMParam)
	}
	return hash, nil
}

func (l *Loader) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := l.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get S3 object s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return nil, xerrors.Wrapf(err, "read S3 object s3://%s/%s", l.opts.S3Bucket, key)
	}
	if len(data) > maxObjectBytes {
		return nil, xerrors.Newf("S3 object s3://%s/%s exceeds %d bytes", l.opts.S3Bucket, key, maxObjectBytes)
	}
	return data, nil
}

// LoadHash downloads the snapshot with the given hash, checks its digest
// and signature, and decodes it.
func (l *Loader) LoadHash(ctx context.Context, hash string) (*Snapshot, error) {
	loadedAt := time.Now().UTC()
	key := snapshot.ObjectKey(l.opts.S3Prefix, hash)

	l.logger.Info(ctx, "downloading content snapshot",
		"bucket", l.opts.S3Bucket,
		"key", key,
		"expected_hash", hash,
	)

	data, err := l.getObject(ctx, key)
	if err != nil {
		return nil, err
	}
	actual := cryptoutil.SHA256Hex(data)
	if !cryptoutil.HashEqual(actual, hash) {
		return nil, xerrors.Newf("checksum mismatch: expected %s, got %s", hash, actual)
	}

	signed, err := l.verify(ctx, hash, data)
	if err != nil {
		return nil, err
	}

	doc, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "decode snapshot %s", hash)
	}

	l.logger.Info(ctx, "loaded content snapshot",
		append([]any{"hash", hash, "bytes", len(data), "signed", signed, "fetched_at", doc.FetchedAt},
			doc.Summary().LogAttrs()...)...,
	)

	return &Snapshot{
		Store: NewStore(doc, l.logger),
		Meta: Meta{
			SHA256:     hash,
			FetchedAt:  doc.FetchedAt,
			StrapiURL:  doc.StrapiURL,
			Source:     SourceS3,
			Location:   "s3://" + l.opts.S3Bucket + "/" + key,
			VerifiedAt: time.Now().UTC(),
			Signed:     signed,
		},
		LoadedAt: loadedAt,
	}, nil
}

func (l *Loader) verify(ctx context.Context, hash string, data []byte) (bool, error) {
	if l.verifier == nil {
		return false, nil
	}
	sigKey := snapshot.SignatureKey(l.opts.S3Prefix, hash)
	sig, err := l.getObject(ctx, sigKey)
	if err != nil {
		if l.opts.RequireSignature {
			return false, xerrors.Wrap(err, "fetch snapshot signature")
		}
		l.logger.Warn(ctx, "snapshot signature unavailable, continuing unsigned",
			"key", sigKey,
			"error", err,
		)
		return false, nil
	}
	if err := l.verifier.VerifySignature(ctx, data, sig); err != nil {
		return false, xerrors.Wrapf(err, "verify snapshot %s", hash)
	}
	return true, nil
}

// Load fetches the current release.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	hash, err := l.FetchCurrentHash(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadHash(ctx, hash)
}

// LoadIntoManager fetches the current release and makes it active if it
// passes validation. A rejected release leaves the manager untouched.
func (l *Loader) LoadIntoManager(ctx context.Context, mgr *Manager, opts ValidationOptions) error {
	snap, err := l.Load(ctx)
	if err != nil {
		return err
	}
	if err := ValidateSnapshot(snap, opts); err != nil {
		return xerrors.Wrapf(err, "reject published snapshot %s", truncHash(snap.Meta.SHA256))
	}
	mgr.Set(*snap)
	return nil
}

// LoadFile reads a snapshot from local disk.
func LoadFile(path string, logger log.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = log.Nop()
	}
	loadedAt := time.Now().UTC()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read snapshot %s", path)
	}
	doc, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "decode snapshot %s", path)
	}
	return &Snapshot{
		Store: NewStore(doc, logger),
		Meta: Meta{
			SHA256:    cryptoutil.SHA256Hex(data),
			FetchedAt: doc.FetchedAt,
			StrapiURL: doc.StrapiURL,
			Source:    SourceFile,
			Location:  path,
		},
		LoadedAt: loadedAt,
	}, nil
}
