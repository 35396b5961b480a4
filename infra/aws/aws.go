// Package aws implements the change log and item store on AWS: Kinesis
// (the DynamoDB streaming destination), DynamoDB Streams and DynamoDB.
//
// Every backend talks to a narrow interface satisfied by the SDK client, so
// tests can substitute a fake. SDK failures are converted to the changelog
// error taxonomy here and nowhere else.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/smithy-go"

	"ddbstream/domain/changelog"
)

// Options selects the region and an optional endpoint override
// (localstack and friends). Empty values defer to the SDK default chain.
type Options struct {
	Region   string
	Endpoint string
}

// Clients bundles the SDK clients built from one aws.Config.
type Clients struct {
	Kinesis  *kinesis.Client
	Streams  *dynamodbstreams.Client
	DynamoDB *dynamodb.Client
}

func NewClients(ctx context.Context, opts Options) (*Clients, error) {
	var loaders []func(*config.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var endpoint *string
	if opts.Endpoint != "" {
		endpoint = aws.String(opts.Endpoint)
	}

	return &Clients{
		Kinesis: kinesis.NewFromConfig(cfg, func(o *kinesis.Options) {
			o.BaseEndpoint = endpoint
		}),
		Streams: dynamodbstreams.NewFromConfig(cfg, func(o *dynamodbstreams.Options) {
			o.BaseEndpoint = endpoint
		}),
		DynamoDB: dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = endpoint
		}),
	}, nil
}

// connectivity tags an SDK failure, keeping the service error code in the
// message when there is one.
func connectivity(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return changelog.Connectivity(op, fmt.Errorf("%s: %w", apiErr.ErrorCode(), err))
	}
	return changelog.Connectivity(op, err)
}
