package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg/utils"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/engine"
)

// Config holds application configuration for risk-worker.
type Config struct {
	MetricsAddr         string        `mapstructure:"METRICS_ADDR" validate:"required"`
	KafkaBrokers        string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	KafkaIngestTopic    string        `mapstructure:"KAFKA_INGEST_TOPIC" validate:"required"`
	KafkaDLQTopic       string        `mapstructure:"KAFKA_DLQ_TOPIC" validate:"required"`
	KafkaConsumerGroup  string        `mapstructure:"KAFKA_CONSUMER_GROUP" validate:"required"`
	KafkaPartition      int           `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaDLQRetention   time.Duration `mapstructure:"KAFKA_DLQ_RETENTION" validate:"required"`
	PrimaryDbAddr       string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReadDbAddr          string        `mapstructure:"READ_DB_ADDR"`
	MaxDbCons           int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons           int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	RedisAddr           string        `mapstructure:"REDIS_ADDR" validate:"required"`
	PipelineShards      int           `mapstructure:"PIPELINE_SHARDS" validate:"min=1"`
	ShardQueueDepth     int           `mapstructure:"SHARD_QUEUE_DEPTH" validate:"min=1"`
	PublishBufferSize   int           `mapstructure:"PUBLISH_BUFFER_SIZE" validate:"min=1"`
	FeedLength          int64         `mapstructure:"FEED_LENGTH" validate:"min=1"`
	MaxPublishRetries   int           `mapstructure:"MAX_PUBLISH_RETRIES" validate:"min=1,max=10"`
	RetryBaseBackoff    time.Duration `mapstructure:"RETRY_BASE_BACKOFF" validate:"required"`
	MaxRetryBackoff     time.Duration `mapstructure:"MAX_RETRY_BACKOFF" validate:"required"`

	// Scoring tunables. Defaults match engine.DefaultConfig.
	WindowDuration        time.Duration `mapstructure:"WINDOW_DURATION" validate:"required"`
	HealthWeight          float64       `mapstructure:"HEALTH_WEIGHT" validate:"gt=0"`
	BaseWeight            float64       `mapstructure:"BASE_WEIGHT" validate:"gte=0,lte=1"`
	AmountZThreshold      float64       `mapstructure:"AMOUNT_Z_THRESHOLD" validate:"gt=0"`
	AmountZScale          float64       `mapstructure:"AMOUNT_Z_SCALE" validate:"gt=0"`
	AmountZCap            float64       `mapstructure:"AMOUNT_Z_CAP" validate:"gt=0"`
	AmountMultiplier      float64       `mapstructure:"AMOUNT_MULTIPLIER" validate:"gt=1"`
	AmountMultiplierScore float64       `mapstructure:"AMOUNT_MULTIPLIER_SCORE" validate:"gt=0"`
	RapidFireGap          time.Duration `mapstructure:"RAPID_FIRE_GAP" validate:"required"`
	RapidFireScore        float64       `mapstructure:"RAPID_FIRE_SCORE" validate:"gt=0"`
	VelocityRatio         float64       `mapstructure:"VELOCITY_RATIO" validate:"gt=1"`
	VelocityScale         float64       `mapstructure:"VELOCITY_SCALE" validate:"gt=0"`
	VelocityCap           float64       `mapstructure:"VELOCITY_CAP" validate:"gt=0"`
	SplitMinCount         int           `mapstructure:"SPLIT_MIN_COUNT" validate:"min=2"`
	SplitTotalMultiplier  float64       `mapstructure:"SPLIT_TOTAL_MULTIPLIER" validate:"gt=0"`
	SplitMaxSingle        float64       `mapstructure:"SPLIT_MAX_SINGLE" validate:"gt=0"`
	SplitScore            float64       `mapstructure:"SPLIT_SCORE" validate:"gt=0"`
	DefaultTypicalAmount  float64       `mapstructure:"DEFAULT_TYPICAL_AMOUNT" validate:"gt=0"`
	GeoScore              float64       `mapstructure:"GEO_SCORE" validate:"gt=0"`
	MerchantScore         float64       `mapstructure:"MERCHANT_SCORE" validate:"gt=0"`
	LevelMediumAt         float64       `mapstructure:"LEVEL_MEDIUM_AT" validate:"gt=0,lt=100"`
	LevelHighAt           float64       `mapstructure:"LEVEL_HIGH_AT" validate:"gt=0,lte=100"`
	TrendEpsilon          float64       `mapstructure:"TREND_EPSILON" validate:"gte=0"`
}

// Engine maps the scoring tunables onto the classifier config.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		WindowDuration:        c.WindowDuration,
		HealthWeight:          c.HealthWeight,
		BaseWeight:            c.BaseWeight,
		AmountZThreshold:      c.AmountZThreshold,
		AmountZScale:          c.AmountZScale,
		AmountZCap:            c.AmountZCap,
		AmountMultiplier:      c.AmountMultiplier,
		AmountMultiplierScore: c.AmountMultiplierScore,
		RapidFireGap:          c.RapidFireGap,
		RapidFireScore:        c.RapidFireScore,
		VelocityRatio:         c.VelocityRatio,
		VelocityScale:         c.VelocityScale,
		VelocityCap:           c.VelocityCap,
		SplitMinCount:         c.SplitMinCount,
		SplitTotalMultiplier:  c.SplitTotalMultiplier,
		SplitMaxSingle:        c.SplitMaxSingle,
		SplitScore:            c.SplitScore,
		DefaultTypicalAmount:  c.DefaultTypicalAmount,
		GeoScore:              c.GeoScore,
		MerchantScore:         c.MerchantScore,
		MediumAt:              c.LevelMediumAt,
		HighAt:                c.LevelHighAt,
		TrendEpsilon:          c.TrendEpsilon,
	}
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_DLQ_RETENTION", "168h")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("PIPELINE_SHARDS", "8")
	viper.SetDefault("SHARD_QUEUE_DEPTH", "256")
	viper.SetDefault("PUBLISH_BUFFER_SIZE", "1024")
	viper.SetDefault("FEED_LENGTH", "500")
	viper.SetDefault("MAX_PUBLISH_RETRIES", "5")
	viper.SetDefault("RETRY_BASE_BACKOFF", "100ms")
	viper.SetDefault("MAX_RETRY_BACKOFF", "5s")

	def := engine.DefaultConfig()
	viper.SetDefault("WINDOW_DURATION", def.WindowDuration.String())
	viper.SetDefault("HEALTH_WEIGHT", def.HealthWeight)
	viper.SetDefault("BASE_WEIGHT", def.BaseWeight)
	viper.SetDefault("AMOUNT_Z_THRESHOLD", def.AmountZThreshold)
	viper.SetDefault("AMOUNT_Z_SCALE", def.AmountZScale)
	viper.SetDefault("AMOUNT_Z_CAP", def.AmountZCap)
	viper.SetDefault("AMOUNT_MULTIPLIER", def.AmountMultiplier)
	viper.SetDefault("AMOUNT_MULTIPLIER_SCORE", def.AmountMultiplierScore)
	viper.SetDefault("RAPID_FIRE_GAP", def.RapidFireGap.String())
	viper.SetDefault("RAPID_FIRE_SCORE", def.RapidFireScore)
	viper.SetDefault("VELOCITY_RATIO", def.VelocityRatio)
	viper.SetDefault("VELOCITY_SCALE", def.VelocityScale)
	viper.SetDefault("VELOCITY_CAP", def.VelocityCap)
	viper.SetDefault("SPLIT_MIN_COUNT", def.SplitMinCount)
	viper.SetDefault("SPLIT_TOTAL_MULTIPLIER", def.SplitTotalMultiplier)
	viper.SetDefault("SPLIT_MAX_SINGLE", def.SplitMaxSingle)
	viper.SetDefault("SPLIT_SCORE", def.SplitScore)
	viper.SetDefault("DEFAULT_TYPICAL_AMOUNT", def.DefaultTypicalAmount)
	viper.SetDefault("GEO_SCORE", def.GeoScore)
	viper.SetDefault("MERCHANT_SCORE", def.MerchantScore)
	viper.SetDefault("LEVEL_MEDIUM_AT", def.MediumAt)
	viper.SetDefault("LEVEL_HIGH_AT", def.HighAt)
	viper.SetDefault("TREND_EPSILON", def.TrendEpsilon)

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running_in_test_mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running_in_development_mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/risk-worker/configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}

	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
