// Package secrets resolves configuration values stored in AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dmehra2102/prod-golang-projects/medcycle/config"
)

var ErrEmptySecret = errors.New("secret has no string value")

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Resolver struct {
	client secretsAPI
}

func NewResolver(ctx context.Context, region string) (*Resolver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Resolver{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

func (r *Resolver) Get(ctx context.Context, arn string) (string, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret %s: %w", arn, err)
	}
	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", fmt.Errorf("%s: %w", arn, ErrEmptySecret)
	}
	return value, nil
}

// Apply overwrites cfg values whose secret ARN is configured. Values already
// present in the environment are replaced.
func (r *Resolver) Apply(ctx context.Context, cfg *config.Config) error {
	if arn := cfg.Secrets.JWTSecretARN; arn != "" {
		secret, err := r.Get(ctx, arn)
		if err != nil {
			return err
		}
		cfg.JWT.Secret = secret
	}
	return nil
}
