package cryptoutil

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// kmsKeyFetcher is the subset of the KMS API the verifier needs.
type kmsKeyFetcher interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// kmsSignAPI is the subset of the KMS API the signer needs.
type kmsSignAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMSVerifier verifies snapshot signatures locally against a KMS public key
// fetched once and cached.
type KMSVerifier struct {
	client kmsKeyFetcher
	keyARN string

	// AllowPKCS1v15 accepts RSA PKCS1v15 signatures when PSS fails.
	AllowPKCS1v15 bool

	mu     sync.RWMutex
	pubKey crypto.PublicKey
}

func NewKMSVerifier(client *kms.Client, keyARN string) *KMSVerifier {
	return &KMSVerifier{client: client, keyARN: keyARN}
}

// PublicKey fetches and caches the KMS public key.
func (v *KMSVerifier) PublicKey(ctx context.Context) (crypto.PublicKey, error) {
	v.mu.RLock()
	if v.pubKey != nil {
		defer v.mu.RUnlock()
		return v.pubKey, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pubKey != nil {
		return v.pubKey, nil
	}
	if v.client == nil {
		return nil, xerrors.New("kms client is not configured")
	}

	out, err := v.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(v.keyARN)})
	if err != nil {
		return nil, xerrors.Wrap(err, "kms get public key")
	}
	if out.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return nil, xerrors.Newf("kms key %s has KeyUsage=%s, expected SIGN_VERIFY", v.keyARN, out.KeyUsage)
	}

	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse kms public key DER")
	}
	v.pubKey = pub
	return pub, nil
}

// VerifySignature checks signature over message. The digest follows the key:
// SHA-384 for P-384, SHA-256 for P-256 and RSA.
func (v *KMSVerifier) VerifySignature(ctx context.Context, message, signature []byte) error {
	pub, err := v.PublicKey(ctx)
	if err != nil {
		return err
	}

	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		hashFunc, digest, err := ecdsaDigest(key.Curve, message)
		if err != nil {
			return err
		}
		if !ecdsa.VerifyASN1(key, digest, signature) {
			return xerrors.Newf("ECDSA signature verification failed (hash %s, curve %s)", hashFunc, key.Curve.Params().Name)
		}
		return nil
	case *rsa.PublicKey:
		digest := sha256.Sum256(message)
		pssErr := rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil)
		if pssErr == nil {
			return nil
		}
		if !v.AllowPKCS1v15 {
			return xerrors.Newf("RSA-PSS verification failed: %v", pssErr)
		}
		return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature)
	default:
		return xerrors.Newf("unsupported public key type: %T", pub)
	}
}

func ecdsaDigest(curve elliptic.Curve, message []byte) (crypto.Hash, []byte, error) {
	switch curve {
	case elliptic.P256():
		d := sha256.Sum256(message)
		return crypto.SHA256, d[:], nil
	case elliptic.P384():
		d := sha512.Sum384(message)
		return crypto.SHA384, d[:], nil
	default:
		return 0, nil, xerrors.Newf("unsupported ECDSA curve: %v", curve.Params().Name)
	}
}

// KMSSigner signs snapshot bytes with an asymmetric KMS key. Messages are
// hashed locally and sent as a digest, so size is not bounded by the KMS
// raw message limit.
type KMSSigner struct {
	client    kmsSignAPI
	keyARN    string
	algorithm kmstypes.SigningAlgorithmSpec
}

// NewKMSSigner defaults to ECDSA_SHA_256 when algorithm is empty.
func NewKMSSigner(client *kms.Client, keyARN string, algorithm kmstypes.SigningAlgorithmSpec) *KMSSigner {
	if algorithm == "" {
		algorithm = kmstypes.SigningAlgorithmSpecEcdsaSha256
	}
	return &KMSSigner{client: client, keyARN: keyARN, algorithm: algorithm}
}

func (s *KMSSigner) KeyARN() string { return s.keyARN }

// Sign returns the DER/raw signature KMS produced for message.
func (s *KMSSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if s.client == nil {
		return nil, xerrors.New("kms client is not configured")
	}

	var digest []byte
	switch s.algorithm {
	case kmstypes.SigningAlgorithmSpecEcdsaSha384:
		d := sha512.Sum384(message)
		digest = d[:]
	case kmstypes.SigningAlgorithmSpecEcdsaSha256, kmstypes.SigningAlgorithmSpecRsassaPssSha256:
		d := sha256.Sum256(message)
		digest = d[:]
	default:
		return nil, xerrors.Newf("unsupported signing algorithm %s", s.algorithm)
	}

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyARN),
		Message:          digest,
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: s.algorithm,
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "kms sign with %s", s.keyARN)
	}
	if len(out.Signature) == 0 {
		return nil, xerrors.New("kms returned an empty signature")
	}
	return out.Signature, nil
}
