// vidmerge/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin               string        `mapstructure:"FF_BIN"`
	FFExtraArgs         string        `mapstructure:"FF_EXTRA_ARGS"`
	JobTimeout          time.Duration `mapstructure:"JOB_TIMEOUT"`
	ConnectTimeout      time.Duration `mapstructure:"CONNECT_TIMEOUT"`
	DownloadTimeout     time.Duration `mapstructure:"DOWNLOAD_TIMEOUT"`
	MaxRedirects        int           `mapstructure:"MAX_REDIRECTS"`
	MaxInputSize        int64         `mapstructure:"MAX_INPUT_SIZE"`
	MinOutputSize       int64         `mapstructure:"MIN_OUTPUT_SIZE"`
	OutputDir           string        `mapstructure:"OUTPUT_DIR"`
	ScratchDir          string        `mapstructure:"SCRATCH_DIR"`
	LogDir              string        `mapstructure:"LOG_DIR"`
	OutputLocalLifetime time.Duration `mapstructure:"OUTPUT_LOCAL_LIFETIME"`
	ThrottleCPU         float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem     int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk    int64         `mapstructure:"THROTTLE_FREEDISK"`
	AuthEnable          bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey             string        `mapstructure:"AUTH_KEY"`
	Port                string        `mapstructure:"PORT"`
	BaseURL             string        `mapstructure:"BASE"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to time.Duration.
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to int64s for byte sizes.
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("JOB_TIMEOUT", "15m")
	vp.SetDefault("CONNECT_TIMEOUT", "10s")
	vp.SetDefault("DOWNLOAD_TIMEOUT", "10m")
	vp.SetDefault("MAX_REDIRECTS", 5)
	vp.SetDefault("MAX_INPUT_SIZE", "2GB")
	vp.SetDefault("MIN_OUTPUT_SIZE", "1KB")
	vp.SetDefault("OUTPUT_DIR", "./published")
	vp.SetDefault("SCRATCH_DIR", "")
	vp.SetDefault("LOG_DIR", "./joblogs")
	vp.SetDefault("OUTPUT_LOCAL_LIFETIME", "24h")
	vp.SetDefault("THROTTLE_CPU", 10.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "500MB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("LOG_LEVEL", "info")

	// Load from config file
	vp.SetConfigName("vidmerge_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/vidmerge/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("VIDMERGE")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
