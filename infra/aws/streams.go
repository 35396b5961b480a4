package aws

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"ddbstream/domain/changelog"
)

// StreamsAPI is the part of *dynamodbstreams.Client the change log uses.
type StreamsAPI interface {
	DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// StreamsLog reads a table's native DynamoDB stream. Records arrive as
// typed structs and are re-encoded into the envelope JSON the Kinesis
// destination would have produced, so enrichment does not care which log
// is configured.
type StreamsLog struct {
	api   StreamsAPI
	arn   string
	limit int32
}

func NewStreamsLog(api StreamsAPI, streamARN string, limit int32) *StreamsLog {
	return &StreamsLog{api: api, arn: streamARN, limit: limit}
}

func (s *StreamsLog) ListShards(ctx context.Context) ([]changelog.ShardID, error) {
	var (
		shards []changelog.ShardID
		start  *string
	)
	for {
		out, err := s.api.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(s.arn),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return nil, connectivity("dynamodb streams describe stream", err)
		}
		if out.StreamDescription == nil {
			return shards, nil
		}
		for _, sh := range out.StreamDescription.Shards {
			shards = append(shards, changelog.ShardID(aws.ToString(sh.ShardId)))
		}
		if out.StreamDescription.LastEvaluatedShardId == nil {
			return shards, nil
		}
		start = out.StreamDescription.LastEvaluatedShardId
	}
}

func (s *StreamsLog) LatestCursor(ctx context.Context, shard changelog.ShardID) (changelog.Cursor, error) {
	out, err := s.api.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(s.arn),
		ShardId:           aws.String(string(shard)),
		ShardIteratorType: types.ShardIteratorTypeLatest,
	})
	if err != nil {
		return "", connectivity("dynamodb streams get shard iterator", err)
	}
	return changelog.Cursor(aws.ToString(out.ShardIterator)), nil
}

func (s *StreamsLog) GetRecords(ctx context.Context, _ changelog.ShardID, cur changelog.Cursor) (changelog.Batch, error) {
	in := &dynamodbstreams.GetRecordsInput{ShardIterator: aws.String(string(cur))}
	if s.limit > 0 {
		in.Limit = aws.Int32(s.limit)
	}

	out, err := s.api.GetRecords(ctx, in)
	if err != nil {
		return changelog.Batch{}, connectivity("dynamodb streams get records", err)
	}

	b := changelog.Batch{Records: make([]changelog.Record, 0, len(out.Records))}
	for _, r := range out.Records {
		data, err := json.Marshal(envelopeOf(r))
		if err != nil {
			return changelog.Batch{}, changelog.Parse("encode stream record", err)
		}
		seq := ""
		if r.Dynamodb != nil {
			seq = aws.ToString(r.Dynamodb.SequenceNumber)
		}
		b.Records = append(b.Records, changelog.Record{Sequence: seq, Data: data})
	}
	if out.NextShardIterator != nil {
		b.Next = changelog.NextCursor(*out.NextShardIterator)
	}
	return b, nil
}

// -------------------- Conversion --------------------

func envelopeOf(r types.Record) changelog.Envelope {
	env := changelog.Envelope{
		EventID:     aws.ToString(r.EventID),
		EventName:   string(r.EventName),
		EventSource: aws.ToString(r.EventSource),
		AWSRegion:   aws.ToString(r.AwsRegion),
	}
	if r.Dynamodb == nil {
		return env
	}
	env.Dynamodb.Keys = scalars(r.Dynamodb.Keys)
	env.Dynamodb.NewImage = scalars(r.Dynamodb.NewImage)
	env.Dynamodb.OldImage = scalars(r.Dynamodb.OldImage)
	if t := r.Dynamodb.ApproximateCreationDateTime; t != nil {
		env.Dynamodb.ApproximateCreationDateTime = json.Number(strconv.FormatInt(t.UnixMilli(), 10))
	}
	return env
}

// scalars keeps the S and N attributes; other types never form a key and
// are not projected.
func scalars(in map[string]types.AttributeValue) map[string]changelog.AttributeValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]changelog.AttributeValue, len(in))
	for name, av := range in {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			out[name] = changelog.StringValue(v.Value)
		case *types.AttributeValueMemberN:
			n := v.Value
			out[name] = changelog.AttributeValue{N: &n}
		}
	}
	return out
}
