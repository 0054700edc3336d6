// Package config loads the collector settings file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelzeko/maiwar-wq/internal/transform"
	"gopkg.in/ini.v1"
)

const (
	// DeploySection holds where and how the collector publishes
	DeploySection = "deploy"
	// LayoutSection optionally overrides where the data sits in a results sheet
	LayoutSection = "layout"

	// DefaultSchedule runs the collector at the top of every hour
	DefaultSchedule = "0 * * * *"
	// DefaultNotifyCommand is the desktop notification program
	DefaultNotifyCommand = "notify-send"
)

var (
	ErrMissingFile    = errors.New("settings file not found")
	ErrMissingSection = errors.New("settings section missing")
	ErrMissingOption  = errors.New("settings option missing")
	ErrInvalidOption  = errors.New("settings option invalid")
)

// Config is the parsed settings file
type Config struct {
	Path string

	MeasurementsFile string
	ArchiveDB        string
	ReportPageURL    string
	PublishedURL     string
	UserAgent        string
	Schedule         string
	MetricsAddr      string
	NotifyCommand    string
	TelegramChatID   int64

	Transform transform.Options
}

// DefaultPath returns ~/.config/maiwar_wq/config.ini
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "maiwar_wq", "config.ini")
	}
	return filepath.Join(home, ".config", "maiwar_wq", "config.ini")
}

// Load reads and validates the settings file at path. There is no fallback:
// a missing file, a missing [deploy] section or a missing measurements_file
// are all errors.
func Load(path string) (*Config, error) {
	file, err := open(path)
	if err != nil {
		return nil, err
	}

	deploy, err := file.GetSection(DeploySection)
	if err != nil {
		return nil, fmt.Errorf("%w: [%s] in %s", ErrMissingSection, DeploySection, path)
	}

	measurementsFile := strings.TrimSpace(deploy.Key("measurements_file").String())
	if measurementsFile == "" {
		return nil, fmt.Errorf("%w: %s in [%s] of %s", ErrMissingOption, "measurements_file", DeploySection, path)
	}

	cfg := &Config{
		Path:             path,
		MeasurementsFile: expandHome(measurementsFile),
		ArchiveDB:        expandHome(strings.TrimSpace(deploy.Key("archive_db").String())),
		ReportPageURL:    strings.TrimSpace(deploy.Key("report_page_url").String()),
		PublishedURL:     strings.TrimSpace(deploy.Key("published_url").String()),
		UserAgent:        strings.TrimSpace(deploy.Key("user_agent").String()),
		Schedule:         strings.TrimSpace(deploy.Key("schedule").MustString(DefaultSchedule)),
		MetricsAddr:      strings.TrimSpace(deploy.Key("metrics_addr").String()),
		NotifyCommand:    strings.TrimSpace(deploy.Key("notify_command").MustString(DefaultNotifyCommand)),
	}

	if deploy.HasKey("telegram_chat_id") {
		chatID, err := deploy.Key("telegram_chat_id").Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: telegram_chat_id: %v", ErrInvalidOption, err)
		}
		cfg.TelegramChatID = chatID
	}

	cfg.Transform, err = transformOptions(file)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTransformOptions reads only the settings that shape a workbook
// transformation. The [deploy] section is not required.
func LoadTransformOptions(path string) (transform.Options, error) {
	file, err := open(path)
	if err != nil {
		return transform.Options{}, err
	}
	return transformOptions(file)
}

func open(path string) (*ini.File, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return file, nil
}

func transformOptions(file *ini.File) (transform.Options, error) {
	opts := transform.DefaultOptions()

	if deploy, err := file.GetSection(DeploySection); err == nil {
		policy, err := transform.ParseCollisionPolicy(deploy.Key("on_date_collision").String())
		if err != nil {
			return opts, fmt.Errorf("%w: on_date_collision: %v", ErrInvalidOption, err)
		}
		opts.OnDateCollision = policy
	}

	section, err := file.GetSection(LayoutSection)
	if err != nil {
		return opts, nil
	}

	layout := &opts.Layout
	for _, row := range []struct {
		key string
		dst *int
	}{
		{"date_row", &layout.DateRow},
		{"first_location_row", &layout.FirstLocationRow},
		{"last_location_row", &layout.LastLocationRow},
	} {
		if !section.HasKey(row.key) {
			continue
		}
		n, err := section.Key(row.key).Int()
		if err != nil {
			return opts, fmt.Errorf("%w: %s: %v", ErrInvalidOption, row.key, err)
		}
		*row.dst = n
	}

	for _, col := range []struct {
		key string
		dst *int
	}{
		{"first_date_col", &layout.FirstDateCol},
		{"location_col", &layout.LocationCol},
	} {
		if !section.HasKey(col.key) {
			continue
		}
		n, err := transform.ColumnNumber(section.Key(col.key).String())
		if err != nil {
			return opts, fmt.Errorf("%w: %s: %v", ErrInvalidOption, col.key, err)
		}
		*col.dst = n
	}

	if section.HasKey("sheet_name_contains") {
		layout.SheetNameContains = section.Key("sheet_name_contains").String()
	}

	if err := layout.Validate(); err != nil {
		return opts, fmt.Errorf("%w: [%s]: %v", ErrInvalidOption, LayoutSection, err)
	}
	return opts, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
