package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// ObjectKey is where a snapshot with the given sha256 lives in the bucket.
func ObjectKey(prefix, hash string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return hash + ".json"
	}
	return prefix + "/" + hash + ".json"
}

// SignatureKey is the object holding the detached signature for a snapshot.
func SignatureKey(prefix, hash string) string {
	return ObjectKey(prefix, hash) + ".sig"
}

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ssmPutAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// Signer produces a detached signature over snapshot bytes.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

type PublisherOptions struct {
	Logger log.Logger

	// s3://{Bucket}/{Prefix}/{sha256}.json
	Bucket string
	Prefix string

	// SSM parameter updated with the new hash once the upload is complete
	SSMParam string

	// optional; when nil no .sig object is written
	Signer Signer

	// uses the default credential chain if nil
	AWSConfig *aws.Config
}

// Publisher uploads a written snapshot and moves the release pointer to it.
type Publisher struct {
	opts   PublisherOptions
	s3     s3PutAPI
	ssm    ssmPutAPI
	logger log.Logger
}

func NewPublisher(ctx context.Context, opts PublisherOptions) (*Publisher, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("publish: bucket is required")
	}
	if opts.SSMParam == "" {
		return nil, xerrors.New("publish: ssm parameter is required")
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

	return &Publisher{
		opts:   opts,
		s3:     s3.NewFromConfig(awsCfg),
		ssm:    ssm.NewFromConfig(awsCfg),
		logger: opts.Logger,
	}, nil
}

// Published describes an upload.
type Published struct {
	Hash         string
	Bucket       string
	Key          string
	SignatureKey string
}

func (p Published) URI() string {
	return fmt.Sprintf("s3://%s/%s", p.Bucket, p.Key)
}

// Publish uploads data (the exact bytes written to disk) under its hash,
// uploads a signature if a signer is configured and finally writes the hash
// to the SSM parameter. The pointer is only moved after every object is in
// place.
func (p *Publisher) Publish(ctx context.Context, data []byte, fetchedAt string) (*Published, error) {
	hash := cryptoutil.SHA256Hex(data)
	out := &Published{
		Hash:   hash,
		Bucket: p.opts.Bucket,
		Key:    ObjectKey(p.opts.Prefix, hash),
	}

	if err := p.put(ctx, out.Key, data, "application/json", map[string]string{
		"sha256":     hash,
		"fetched-at": fetchedAt,
	}); err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "uploaded snapshot", "uri", out.URI(), "bytes", len(data))

	if p.opts.Signer != nil {
		sig, err := p.opts.Signer.Sign(ctx, data)
		if err != nil {
			return nil, xerrors.Wrap(err, "sign snapshot")
		}
		out.SignatureKey = SignatureKey(p.opts.Prefix, hash)
		if err := p.put(ctx, out.SignatureKey, sig, "application/octet-stream", map[string]string{
			"sha256": hash,
		}); err != nil {
			return nil, err
		}
		p.logger.Info(ctx, "uploaded snapshot signature", "key", out.SignatureKey)
	}

	if _, err := p.ssm.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(p.opts.SSMParam),
		Value:     aws.String(hash),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	}); err != nil {
		return nil, xerrors.Wrapf(err, "put SSM parameter %s", p.opts.SSMParam)
	}
	p.logger.Info(ctx, "release pointer updated", "ssm_param", p.opts.SSMParam, "hash", hash)

	return out, nil
}

func (p *Publisher) put(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error {
	sum, _ := hex.DecodeString(cryptoutil.SHA256Hex(body))
	_, err := p.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(p.opts.Bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(body),
		ContentLength:  aws.Int64(int64(len(body))),
		ContentType:    aws.String(contentType),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(sum)),
		Metadata:       meta,
	})
	if err != nil {
		return xerrors.Wrapf(err, "put s3://%s/%s", p.opts.Bucket, key)
	}
	return nil
}
