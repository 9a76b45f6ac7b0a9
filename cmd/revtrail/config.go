package main

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/revtrail/revtrail"
	"github.com/spf13/viper"
)

const defaultTableHint = revtrail.DefaultMigrationTable

// LogConfig controls engine logging from the config file.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConfigDoc is the YAML config file layout.
type ConfigDoc struct {
	Driver         string    `mapstructure:"driver"`
	DSN            string    `mapstructure:"dsn"`
	MigrationDir   string    `mapstructure:"migration_dir"`
	MigrationTable string    `mapstructure:"migration_table"`
	Log            LogConfig `mapstructure:"log"`
}

// Load reads and decodes a config file.
func (d *ConfigDoc) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := mapstructure.Decode(v.AllSettings(), d); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return nil
}

// loadEngine builds the engine driver from the config file plus flag/env
// overrides. Flags win over the file; the file wins over defaults.
func loadEngine() (revtrail.Driver, *revtrail.Config, error) {
	v := viper.GetViper()

	doc := ConfigDoc{Driver: revtrail.DriverMySQL}
	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		if err := doc.Load(path); err != nil {
			return nil, nil, err
		}
	}
	if driver := strings.TrimSpace(v.GetString("driver")); driver != "" {
		doc.Driver = driver
	}
	if dsn := strings.TrimSpace(v.GetString("dsn")); dsn != "" {
		doc.DSN = dsn
	}
	if table := strings.TrimSpace(v.GetString("table")); table != "" {
		doc.MigrationTable = table
	}

	applyLogging(doc.Log)

	cfg := &revtrail.Config{
		DSN:            doc.DSN,
		MigrationDir:   doc.MigrationDir,
		MigrationTable: doc.MigrationTable,
	}
	driver, err := revtrail.New(doc.Driver, cfg)
	if err != nil {
		return nil, nil, err
	}
	return driver, cfg, nil
}

func applyLogging(lc LogConfig) {
	if strings.EqualFold(strings.TrimSpace(lc.Format), "json") {
		revtrail.SetDefaultLogger(revtrail.NewJSONLogger(lc.Level))
		return
	}
	revtrail.SetDefaultLogger(revtrail.NewLogger(lc.Level))
}
