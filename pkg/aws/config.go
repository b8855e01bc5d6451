package aws

import (
	"context"

	"attendance.tracker/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog/log"
)

// NewAWSConfig creates the AWS SDK configuration, pointing at LocalStack
// when a custom endpoint is configured for local development.
func NewAWSConfig(ctx context.Context, appConfig config.Config) (aws.Config, error) {
	if appConfig.IsLocalDev && appConfig.AWSEndpoint != "" {
		log.Info().Str("endpoint", appConfig.AWSEndpoint).Msg("Routing AWS calls to local endpoint")

		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           appConfig.AWSEndpoint,
				SigningRegion: region,
				PartitionID:   "aws",
			}, nil
		})

		return awsConfig.LoadDefaultConfig(ctx,
			awsConfig.WithRegion(appConfig.AWSRegion),
			awsConfig.WithEndpointResolverWithOptions(customResolver),
			awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	}

	// Everywhere else the standard credential chain applies (environment,
	// shared config, IAM role).
	return awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(appConfig.AWSRegion))
}
