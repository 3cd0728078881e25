package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/sirupsen/logrus"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerResolver reads credentials stored as JSON secrets
// ({"username": "...", "password": "..."}) in AWS Secrets Manager.
type SecretsManagerResolver struct {
	log    logrus.FieldLogger
	client SecretsManagerAPI
	prefix string
}

var _ Resolver = (*SecretsManagerResolver)(nil)

// NewSecretsManagerResolver creates a resolver from the given configuration.
// Static keys are used when both are set, otherwise the SDK's default
// credential chain (environment, shared config, instance or task role)
// applies. The region falls back to the chain, then to us-east-1.
func NewSecretsManagerResolver(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.AWSCredentialsConfig,
) (*SecretsManagerResolver, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})

	return NewSecretsManagerResolverWithClient(log, client, cfg.SecretPrefix), nil
}

const defaultRegion = "us-east-1"

// NewSecretsManagerResolverWithClient wraps an existing client.
func NewSecretsManagerResolverWithClient(
	log logrus.FieldLogger,
	client SecretsManagerAPI,
	prefix string,
) *SecretsManagerResolver {
	return &SecretsManagerResolver{
		log:    log.WithField("component", "credential-aws"),
		client: client,
		prefix: prefix,
	}
}

// Name returns the provider identifier.
func (r *SecretsManagerResolver) Name() string {
	return "aws"
}

// Resolve fetches the secret named prefix+id.
func (r *SecretsManagerResolver) Resolve(ctx context.Context, id string) (*Credential, error) {
	name := r.prefix + id

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var rnf *smtypes.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return nil, notFound(id, "secrets manager")
		}

		return nil, fmt.Errorf("GetSecretValue %s: %w", name, err)
	}

	var raw []byte

	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		raw = out.SecretBinary
	default:
		return nil, fmt.Errorf("secret %s has no value", name)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		// The secret body is not echoed: it may be the password itself.
		return nil, fmt.Errorf("secret %s is not a JSON credential", name)
	}

	r.log.WithField("secret", name).Debug("Resolved credential from secrets manager")

	return &cred, nil
}
