package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConf struct {
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
}

type MongoConf struct {
	URI          string `mapstructure:"uri"`
	Database     string `mapstructure:"database"`
	Transactions bool   `mapstructure:"transactions"`
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type UploadConf struct {
	MaxBytes    int64 `mapstructure:"max_bytes"`
	ThumbWidth  int   `mapstructure:"thumb_width"`
	ThumbHeight int   `mapstructure:"thumb_height"`
}

type JWTConf struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type Config struct {
	App    AppConf    `mapstructure:"app"`
	Mongo  MongoConf  `mapstructure:"mongodb"`
	AWS    AWSConf    `mapstructure:"aws"`
	Upload UploadConf `mapstructure:"upload"`
	JWT    JWTConf    `mapstructure:"jwt"`
	Store  struct {
		OpTimeoutSeconds int `mapstructure:"op_timeout_seconds"`
	} `mapstructure:"store"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	OpTimeout       time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.ShutdownSecond == 0 {
		cfg.App.ShutdownSecond = 15
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSecond) * time.Second
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 10 << 20
	}
	if cfg.Upload.ThumbWidth == 0 {
		cfg.Upload.ThumbWidth = 300
	}
	if cfg.Upload.ThumbHeight == 0 {
		cfg.Upload.ThumbHeight = 300
	}
	if cfg.Store.OpTimeoutSeconds == 0 {
		cfg.Store.OpTimeoutSeconds = 10
	}
	cfg.OpTimeout = time.Duration(cfg.Store.OpTimeoutSeconds) * time.Second
	return &cfg, nil
}
