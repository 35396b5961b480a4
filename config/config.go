package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Table     TableConfig     `mapstructure:"table"`
	Store     StoreConfig     `mapstructure:"store"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Poll      PollConfig      `mapstructure:"poll"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Pebble    PebbleConfig    `mapstructure:"pebble"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	GRPCListen       string `mapstructure:"grpc_listen"`
	MetricsListen    string `mapstructure:"metrics_listen"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
	// ItemAPI serves POST /v1/items on the metrics listener.
	ItemAPI bool `mapstructure:"item_api"`
}

type TableConfig struct {
	Name           string `mapstructure:"name"`
	KeyAttribute   string `mapstructure:"key_attribute"`
	ValueAttribute string `mapstructure:"value_attribute"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type StreamConfig struct {
	Source     string `mapstructure:"source"`
	Name       string `mapstructure:"name"`
	ARN        string `mapstructure:"arn"`
	BatchLimit int    `mapstructure:"batch_limit"`
}

type PollConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	FailurePolicy   string        `mapstructure:"failure_policy"`
	RestartDelay    time.Duration `mapstructure:"restart_delay"`
	RestartMaxDelay time.Duration `mapstructure:"restart_max_delay"`
	MaxRestarts     int           `mapstructure:"max_restarts"`
}

type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topic   string            `mapstructure:"topic"`
	MaxWait time.Duration     `mapstructure:"max_wait"`
	Mirror  KafkaMirrorConfig `mapstructure:"mirror"`
}

type KafkaMirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

type PebbleConfig struct {
	Dir    string `mapstructure:"dir"`
	Shards int    `mapstructure:"shards"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	BackendDynamoDB = "dynamodb"
	BackendPebble   = "pebble"

	SourceKinesis         = "kinesis"
	SourceDynamoDBStreams = "dynamodbstreams"
	SourceKafka           = "kafka"
	SourcePebble          = "pebble"
)

// Load reads and validates the server configuration.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads path (optional; empty skips the file), then environment
// variables prefixed DDBSTREAM_ with dots as underscores. The variables
// DYNAMODB_TABLE and KINESIS_STREAM are honoured for the table and stream
// names. Nothing is validated.
func Read(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ddbstream")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("table.name", "DDBSTREAM_TABLE_NAME", "DYNAMODB_TABLE"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("stream.name", "DDBSTREAM_STREAM_NAME", "KINESIS_STREAM"); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_listen", ":50051")
	v.SetDefault("server.metrics_listen", ":9090")
	v.SetDefault("server.subscriber_buffer", 128)
	v.SetDefault("server.item_api", false)

	v.SetDefault("table.name", "")
	v.SetDefault("table.key_attribute", "id")
	v.SetDefault("table.value_attribute", "value")

	v.SetDefault("store.backend", BackendDynamoDB)

	v.SetDefault("stream.source", SourceKinesis)
	v.SetDefault("stream.name", "")
	v.SetDefault("stream.arn", "")
	v.SetDefault("stream.batch_limit", 0)

	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.failure_policy", "fail-fast")
	v.SetDefault("poll.restart_delay", time.Second)
	v.SetDefault("poll.restart_max_delay", 30*time.Second)
	v.SetDefault("poll.max_restarts", -1)

	v.SetDefault("heartbeat.interval", 10*time.Second)

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "ddbstream-changes")
	v.SetDefault("kafka.max_wait", 500*time.Millisecond)
	v.SetDefault("kafka.mirror.enabled", false)
	v.SetDefault("kafka.mirror.topic", "ddbstream-events")

	v.SetDefault("pebble.dir", "./data")
	v.SetDefault("pebble.shards", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks everything the server needs.
func (c Config) Validate() error {
	if c.Server.GRPCListen == "" {
		return fmt.Errorf("server.grpc_listen is required")
	}
	if c.Server.SubscriberBuffer < 1 {
		return fmt.Errorf("server.subscriber_buffer must be positive, got %d", c.Server.SubscriberBuffer)
	}
	if c.Server.ItemAPI && c.Server.MetricsListen == "" {
		return fmt.Errorf("server.item_api needs server.metrics_listen")
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	return c.validateRest()
}

// ValidateStore checks only the item store settings, which is all the
// writer tool needs.
func (c Config) ValidateStore() error {
	if c.Table.KeyAttribute == "" || c.Table.ValueAttribute == "" {
		return fmt.Errorf("table.key_attribute and table.value_attribute are required")
	}

	switch c.Store.Backend {
	case BackendDynamoDB:
		if c.Table.Name == "" {
			return fmt.Errorf("table.name is required for store.backend=%s", BackendDynamoDB)
		}
	case BackendPebble:
		if c.Pebble.Dir == "" || c.Pebble.Shards < 1 {
			return fmt.Errorf("pebble.dir and a positive pebble.shards are required for store.backend=%s", BackendPebble)
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

func (c Config) validateRest() error {
	switch c.Stream.Source {
	case SourceKinesis:
		if c.Stream.Name == "" {
			return fmt.Errorf("stream.name is required for stream.source=%s", SourceKinesis)
		}
	case SourceDynamoDBStreams:
		if c.Stream.ARN == "" {
			return fmt.Errorf("stream.arn is required for stream.source=%s", SourceDynamoDBStreams)
		}
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.brokers and kafka.topic are required for stream.source=%s", SourceKafka)
		}
		if c.Kafka.MaxWait <= 0 {
			return fmt.Errorf("kafka.max_wait must be positive")
		}
	case SourcePebble:
		if c.Store.Backend != BackendPebble {
			return fmt.Errorf("stream.source=%s needs store.backend=%s", SourcePebble, BackendPebble)
		}
	default:
		return fmt.Errorf("unknown stream.source %q", c.Stream.Source)
	}
	if c.Stream.BatchLimit < 0 {
		return fmt.Errorf("stream.batch_limit must not be negative")
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	switch c.Poll.FailurePolicy {
	case "fail-fast":
	case "restart":
		if c.Poll.RestartDelay <= 0 {
			return fmt.Errorf("poll.restart_delay must be positive")
		}
		if c.Poll.RestartMaxDelay < c.Poll.RestartDelay {
			return fmt.Errorf("poll.restart_max_delay must be at least poll.restart_delay")
		}
	default:
		return fmt.Errorf("unknown poll.failure_policy %q", c.Poll.FailurePolicy)
	}

	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive")
	}

	if c.Kafka.Mirror.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Mirror.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.mirror.topic are required when kafka.mirror.enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
