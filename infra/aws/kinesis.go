package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"ddbstream/domain/changelog"
)

// KinesisAPI is the part of *kinesis.Client the change log uses.
type KinesisAPI interface {
	ListShards(ctx context.Context, in *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
	GetShardIterator(ctx context.Context, in *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

// KinesisLog reads a Kinesis data stream fed by a DynamoDB table's
// streaming destination. Cursors are shard iterators.
type KinesisLog struct {
	api    KinesisAPI
	stream string
	limit  int32
}

// NewKinesisLog reads stream. limit caps records per fetch; 0 leaves the
// service default.
func NewKinesisLog(api KinesisAPI, stream string, limit int32) *KinesisLog {
	return &KinesisLog{api: api, stream: stream, limit: limit}
}

func (k *KinesisLog) ListShards(ctx context.Context) ([]changelog.ShardID, error) {
	var (
		shards []changelog.ShardID
		token  *string
	)
	for {
		in := &kinesis.ListShardsInput{}
		// StreamName and NextToken are mutually exclusive.
		if token == nil {
			in.StreamName = aws.String(k.stream)
		} else {
			in.NextToken = token
		}

		out, err := k.api.ListShards(ctx, in)
		if err != nil {
			return nil, connectivity("kinesis list shards", err)
		}
		for _, s := range out.Shards {
			shards = append(shards, changelog.ShardID(aws.ToString(s.ShardId)))
		}
		if out.NextToken == nil {
			return shards, nil
		}
		token = out.NextToken
	}
}

func (k *KinesisLog) LatestCursor(ctx context.Context, shard changelog.ShardID) (changelog.Cursor, error) {
	out, err := k.api.GetShardIterator(ctx, &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(k.stream),
		ShardId:           aws.String(string(shard)),
		ShardIteratorType: types.ShardIteratorTypeLatest,
	})
	if err != nil {
		return "", connectivity("kinesis get shard iterator", err)
	}
	return changelog.Cursor(aws.ToString(out.ShardIterator)), nil
}

func (k *KinesisLog) GetRecords(ctx context.Context, _ changelog.ShardID, cur changelog.Cursor) (changelog.Batch, error) {
	in := &kinesis.GetRecordsInput{ShardIterator: aws.String(string(cur))}
	if k.limit > 0 {
		in.Limit = aws.Int32(k.limit)
	}

	out, err := k.api.GetRecords(ctx, in)
	if err != nil {
		return changelog.Batch{}, connectivity("kinesis get records", err)
	}

	b := changelog.Batch{Records: make([]changelog.Record, 0, len(out.Records))}
	for _, r := range out.Records {
		b.Records = append(b.Records, changelog.Record{
			Sequence: aws.ToString(r.SequenceNumber),
			Data:     r.Data,
		})
	}
	if out.NextShardIterator != nil {
		b.Next = changelog.NextCursor(*out.NextShardIterator)
	}
	return b, nil
}
