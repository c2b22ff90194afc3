package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg/utils"
)

type Config struct {
	Port                 string        `mapstructure:"PORT" validate:"required"`
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	KafkaIngestTopic     string        `mapstructure:"KAFKA_INGEST_TOPIC" validate:"required"`
	KafkaIngestRetention time.Duration `mapstructure:"KAFKA_INGEST_RETENTION" validate:"required"`
	KafkaPartition       uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	PrimaryDbAddr        string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr        string        `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons            int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons            int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR" validate:"required"`
	DefaultFeedLimit     int           `mapstructure:"DEFAULT_FEED_LIMIT" validate:"min=1"`
	MaxFeedLimit         int           `mapstructure:"MAX_FEED_LIMIT" validate:"min=1"`
	UserHistoryLimit     int           `mapstructure:"USER_HISTORY_LIMIT" validate:"min=1"`
	IngestRatePerSec     int           `mapstructure:"INGEST_RATE_PER_SEC" validate:"min=0"`
	IngestBurst          int           `mapstructure:"INGEST_BURST" validate:"min=1"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_INGEST_RETENTION", "72h")
	viper.SetDefault("DEFAULT_FEED_LIMIT", "50")
	viper.SetDefault("MAX_FEED_LIMIT", "500")
	viper.SetDefault("USER_HISTORY_LIMIT", "50")
	viper.SetDefault("INGEST_RATE_PER_SEC", "0")
	viper.SetDefault("INGEST_BURST", "100")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running in test mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running in development mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/risk-api/configs")
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
