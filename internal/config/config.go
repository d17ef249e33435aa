// Package config loads the codexec configuration file and exposes the
// typed sections the rest of the service consumes.
package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Dockerfiles holds the per-language Dockerfile paths used as build contexts.
type Dockerfiles struct {
	Python     string `mapstructure:"python"`
	JavaScript string `mapstructure:"javascript"`
	Java       string `mapstructure:"java"`
}

// Paths holds filesystem locations owned by the service.
type Paths struct {
	// TarPath is the base directory for transient build-context archives.
	TarPath string `mapstructure:"tar_path"`
}

// Constants holds naming constants shared by the driver and cleanup paths.
type Constants struct {
	Dockerfile            string `mapstructure:"dockerfile"`
	DockerCreatedByLabel  string `mapstructure:"docker_created_by_label"`
	ServiceName           string `mapstructure:"service_name"`
	ExecutorContainerName string `mapstructure:"executor_container_name"`
	ExecutorImageName     string `mapstructure:"executor_image_name"`
	TarFileName           string `mapstructure:"tar_file_name"`
}

// Build holds listener addresses and the service identity.
type Build struct {
	ServicePort   int    `mapstructure:"service_port"`
	ServiceName   string `mapstructure:"service_name"`
	GrpcUIPort    int    `mapstructure:"grpc_ui_port"`
	WebSocketPort int    `mapstructure:"web_socket_port"`
	Host          string `mapstructure:"host"`
}

// SessionConfigs holds the session registry tuning knobs. All durations are
// in seconds.
type SessionConfigs struct {
	SessionTimeout         int64 `mapstructure:"session_timeout"`
	SessionCleanupInterval int64 `mapstructure:"session_cleanup_interval"`
	MaxSessions            int   `mapstructure:"max_sessions"`
}

// WebsocketPoolConfig bounds the live-edit connection pool.
type WebsocketPoolConfig struct {
	MaxConnections int `mapstructure:"max_connections"`
}

// Config is the root of the recognized option set.
type Config struct {
	Dockerfiles         Dockerfiles         `mapstructure:"dockerfiles"`
	Paths               Paths               `mapstructure:"paths"`
	Constants           Constants           `mapstructure:"constants"`
	Build               Build               `mapstructure:"build"`
	SessionConfigs      SessionConfigs      `mapstructure:"session_configs"`
	WebsocketPoolConfig WebsocketPoolConfig `mapstructure:"websocket_pool_config"`
}

// Load reads the config file at path, applies defaults, and stamps the
// service name with this process instance's uuid. The stamped name is the
// basis of the engine ownership label, so two processes sharing a config
// file never claim each other's containers.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	podUUID := uuid.New().String()
	cfg.Build.ServiceName = fmt.Sprintf("%s %s", cfg.Build.ServiceName, podUUID)
	log.Debug().Str("service_name", cfg.Build.ServiceName).Msg("Config loaded")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.tar_path", "./docker/context/")
	v.SetDefault("constants.dockerfile", "Dockerfile")
	v.SetDefault("constants.docker_created_by_label", "created-by")
	v.SetDefault("constants.service_name", "codexec")
	v.SetDefault("constants.executor_container_name", "executor")
	v.SetDefault("constants.executor_image_name", "executor_image")
	v.SetDefault("constants.tar_file_name", "context.tar")
	v.SetDefault("build.service_port", 50051)
	v.SetDefault("build.service_name", "executor_service")
	v.SetDefault("build.grpc_ui_port", 50052)
	v.SetDefault("build.web_socket_port", 9001)
	v.SetDefault("build.host", "127.0.0.1")
	v.SetDefault("session_configs.session_timeout", 3600)
	v.SetDefault("session_configs.session_cleanup_interval", 300)
	v.SetDefault("session_configs.max_sessions", 100)
	v.SetDefault("websocket_pool_config.max_connections", 100)
}

func (c *Config) validate() error {
	if c.Dockerfiles.Python == "" || c.Dockerfiles.JavaScript == "" || c.Dockerfiles.Java == "" {
		return fmt.Errorf("config: dockerfiles.python, dockerfiles.javascript and dockerfiles.java are required")
	}
	if c.Paths.TarPath == "" {
		return fmt.Errorf("config: paths.tar_path is required")
	}
	if c.SessionConfigs.SessionTimeout <= 0 {
		return fmt.Errorf("config: session_configs.session_timeout must be positive")
	}
	if c.WebsocketPoolConfig.MaxConnections <= 0 {
		return fmt.Errorf("config: websocket_pool_config.max_connections must be positive")
	}
	return nil
}

// PodTag is the value stored under the ownership label on every container
// this process creates: "{service_name}_{uuid}".
func (c *Config) PodTag() string {
	return strings.ReplaceAll(c.Build.ServiceName, " ", "_")
}
