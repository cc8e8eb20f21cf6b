// Package aws signs short-lived RDS IAM tokens used as Postgres passwords.
package aws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5"

	"github.com/pagepulse/comment-sync/internal/config"
)

const (
	// RegionDetect asks the instance metadata service for the region
	RegionDetect = "detect"

	imdsTimeout = 2 * time.Second
)

// regionSource is the part of the IMDS client used to detect the region
type regionSource interface {
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

// tokenBuilder signs a token for user on endpoint in region
type tokenBuilder func(ctx context.Context, endpoint, region, user string) (string, error)

// signer produces tokens for one database endpoint
type signer struct {
	endpoint string
	region   string
	build    tokenBuilder
}

func newIMDSClient() regionSource {
	return imds.New(imds.Options{HTTPClient: &http.Client{Timeout: imdsTimeout}})
}

// buildWithDefaultCredentials signs with the default AWS credential chain
func buildWithDefaultCredentials(ctx context.Context, endpoint, region, user string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	token, err := auth.BuildAuthToken(ctx, endpoint, region, user, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("failed to build authentication token: %w", err)
	}
	return token, nil
}

// resolveRegion returns the configured region, asking imds when it is "detect"
func resolveRegion(ctx context.Context, cfg *config.DatabaseConfig, imdsClient regionSource) (string, error) {
	if cfg.DynamicAuth == nil || cfg.DynamicAuth.AWSRDSIAM == nil {
		return "", fmt.Errorf("AWS RDS IAM is not configured")
	}

	region := cfg.DynamicAuth.AWSRDSIAM.Region
	switch region {
	case "":
		return "", fmt.Errorf("AWS RDS IAM region is not configured")
	case RegionDetect:
		out, err := imdsClient.GetRegion(ctx, &imds.GetRegionInput{})
		if err != nil {
			return "", fmt.Errorf("failed to get region from IMDS: %w", err)
		}
		if out.Region == "" {
			return "", fmt.Errorf("IMDS returned an empty region")
		}
		return out.Region, nil
	default:
		return region, nil
	}
}

func newSigner(ctx context.Context, cfg *config.DatabaseConfig, imdsClient regionSource, build tokenBuilder) (*signer, error) {
	region, err := resolveRegion(ctx, cfg, imdsClient)
	if err != nil {
		return nil, err
	}
	return &signer{
		endpoint: cfg.Host + ":" + strconv.Itoa(cfg.Port),
		region:   region,
		build:    build,
	}, nil
}

func (s *signer) token(ctx context.Context, user string) (string, error) {
	return s.build(ctx, s.endpoint, s.region, user)
}

// beforeConnect sets a freshly signed token as the password of every new connection
func (s *signer) beforeConnect(user string) func(context.Context, *pgx.ConnConfig) error {
	return func(ctx context.Context, connConfig *pgx.ConnConfig) error {
		token, err := s.token(ctx, user)
		if err != nil {
			return err
		}
		connConfig.Password = token
		return nil
	}
}

// NewToken returns a single RDS IAM token for user
func NewToken(ctx context.Context, cfg *config.DatabaseConfig, user string) (string, error) {
	s, err := newSigner(ctx, cfg, newIMDSClient(), buildWithDefaultCredentials)
	if err != nil {
		return "", err
	}
	return s.token(ctx, user)
}

// PgxAuthFunc returns a BeforeConnect hook signing a new token for each pool
// connection. The region is resolved once, up front. The workload role must
// be granted rds-db:connect for user.
func PgxAuthFunc(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
) (func(ctx context.Context, connConfig *pgx.ConnConfig) error, error) {
	s, err := newSigner(ctx, cfg, newIMDSClient(), buildWithDefaultCredentials)
	if err != nil {
		return nil, err
	}
	return s.beforeConnect(user), nil
}
