package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robotsim/robots/internal/robot"
	"github.com/robotsim/robots/internal/scheduler"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "robots.cfg.json"

// RobotConfig holds the initial pose, initial target and motion limits.
type RobotConfig struct {
	X       float64 `json:"x" mapstructure:"x"`
	Y       float64 `json:"y" mapstructure:"y"`
	Heading float64 `json:"heading" mapstructure:"heading"`
	TargetX int     `json:"targetX" mapstructure:"targetX"`
	TargetY int     `json:"targetY" mapstructure:"targetY"`
	Limits  robot.Limits
}

// RecorderConfig holds trajectory recording settings
type RecorderConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	Type          string        `json:"type" mapstructure:"type"` // memory, sqlite, postgres
	SQLitePath    string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	SampleEvery   int           `json:"sampleEvery" mapstructure:"sampleEvery"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	QueueSize     int           `json:"queueSize" mapstructure:"queueSize"`

	// sqlite: keep the database in memory and dump it to SQLitePath periodically
	InMemory     bool          `json:"inMemory" mapstructure:"inMemory"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`

	// memory: JSON export written when a run ends, empty disables it
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// DBConfig holds postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StreamConfig holds websocket feed settings
type StreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"` // empty means <logsDir>/status.json
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// Load sets default values and reads the JSON config file from configDir.
// A missing file is not an error; the defaults apply.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./robotlogs")

	lim := robot.DefaultLimits()
	viper.SetDefault("robot.x", 100.0)
	viper.SetDefault("robot.y", 100.0)
	viper.SetDefault("robot.heading", 0.0)
	viper.SetDefault("robot.targetX", 150)
	viper.SetDefault("robot.targetY", 100)
	viper.SetDefault("robot.maxVelocity", lim.MaxVelocity)
	viper.SetDefault("robot.maxAngularVelocity", lim.MaxAngularVelocity)
	viper.SetDefault("robot.arrivalTolerance", lim.ArrivalTolerance)

	viper.SetDefault("scheduler.updateInterval", "10ms")
	viper.SetDefault("scheduler.redrawInterval", "50ms")

	viper.SetDefault("recorder.enabled", false)
	viper.SetDefault("recorder.type", "memory")
	viper.SetDefault("recorder.sqlitePath", "./robots.db")
	viper.SetDefault("recorder.sampleEvery", 10)
	viper.SetDefault("recorder.flushInterval", "1s")
	viper.SetDefault("recorder.queueSize", 4096)
	viper.SetDefault("recorder.inMemory", false)
	viper.SetDefault("recorder.dumpInterval", "30s")
	viper.SetDefault("recorder.outputDir", "")
	viper.SetDefault("recorder.compressOutput", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "robots")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.addr", "127.0.0.1:8089")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "robots")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "30s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// FileUsed returns the path of the loaded config file, or "" when running
// on defaults.
func FileUsed() string {
	return viper.ConfigFileUsed()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetRobotConfig returns the robot settings.
func GetRobotConfig() RobotConfig {
	return RobotConfig{
		X:       viper.GetFloat64("robot.x"),
		Y:       viper.GetFloat64("robot.y"),
		Heading: viper.GetFloat64("robot.heading"),
		TargetX: viper.GetInt("robot.targetX"),
		TargetY: viper.GetInt("robot.targetY"),
		Limits: robot.Limits{
			MaxVelocity:        viper.GetFloat64("robot.maxVelocity"),
			MaxAngularVelocity: viper.GetFloat64("robot.maxAngularVelocity"),
			ArrivalTolerance:   viper.GetFloat64("robot.arrivalTolerance"),
		},
	}
}

// GetSchedulerConfig returns the tick periods.
func GetSchedulerConfig() scheduler.Config {
	return scheduler.Config{
		UpdateInterval: viper.GetDuration("scheduler.updateInterval"),
		RedrawInterval: viper.GetDuration("scheduler.redrawInterval"),
	}
}

// GetRecorderConfig returns the recorder settings.
func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:       viper.GetBool("recorder.enabled"),
		Type:          viper.GetString("recorder.type"),
		SQLitePath:    viper.GetString("recorder.sqlitePath"),
		SampleEvery:   viper.GetInt("recorder.sampleEvery"),
		FlushInterval: viper.GetDuration("recorder.flushInterval"),
		QueueSize:     viper.GetInt("recorder.queueSize"),

		InMemory:     viper.GetBool("recorder.inMemory"),
		DumpInterval: viper.GetDuration("recorder.dumpInterval"),

		OutputDir:      viper.GetString("recorder.outputDir"),
		CompressOutput: viper.GetBool("recorder.compressOutput"),
	}
}

// GetDBConfig returns the postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetStreamConfig returns the websocket feed settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		Addr:    viper.GetString("stream.addr"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}
