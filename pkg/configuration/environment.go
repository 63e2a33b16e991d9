package configuration

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func Use() *Configuration {
	return singleton()
}

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Name     string `env:"DB_NAME" envDefault:"biocore"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type BiobankOptions struct {
	// Minimum gap between two orders' finalized times for them to count as
	// separate in-person visits.
	DistinctVisitMinGap time.Duration `env:"BIOBANK_DISTINCT_VISIT_MIN_GAP" envDefault:"24h"`
	// Specimen-code prefix whose export entries carry a kit identifier.
	KitSpecimenPrefix string `env:"BIOBANK_KIT_SPECIMEN_PREFIX" envDefault:"1SAL"`
	// Destination client identifier stamped on export shipment groups.
	ExportDestination string `env:"BIOBANK_EXPORT_DESTINATION" envDefault:"biobank"`
}

type BlobOptions struct {
	Driver    string `env:"BLOB_DRIVER" envDefault:"fs"` // fs, s3 or memory
	Dir       string `env:"BLOB_FS_DIR" envDefault:"./exports"`
	S3Bucket  string `env:"BLOB_S3_BUCKET"`
	S3Region  string `env:"BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Path    bool   `env:"BLOB_S3_PATH_STYLE" envDefault:"false"`
	S3BaseURL string `env:"BLOB_S3_ENDPOINT"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Biobank    BiobankOptions
	Blob       BlobOptions
	Prometheus PrometheusOptions

	ServerPort  int    `env:"PORT" envDefault:"3200"`
	Environment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) load(envFiles []string) error {
	if _, err := LoadEnv(envFiles); err != nil {
		return err
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := logrus.New()
	logger.SetLevel(level)
	if c.Environment == Production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	c.logger = logger
	return nil
}

// Unload resets the in-process environment so a fresh load can pick up new
// values. Used on panic paths and in tests.
func (c *Configuration) Unload() {
	for _, k := range []string{
		"DB_NAME", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD",
		"BIOBANK_DISTINCT_VISIT_MIN_GAP", "BIOBANK_KIT_SPECIMEN_PREFIX",
		"BIOBANK_EXPORT_DESTINATION",
		"BLOB_DRIVER", "BLOB_FS_DIR", "BLOB_S3_BUCKET",
	} {
		os.Unsetenv(k)
	}
}
