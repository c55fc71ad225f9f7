// Package config loads and validates the YAML pipeline configuration shared by
// all stages.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/ed-tools/dataquiz/app/quiz"
)

// Config is the full pipeline configuration.
type Config struct {
	Master  string `yaml:"master"`  // master dataset CSV
	Out     string `yaml:"out"`     // output dir for variants, archives and manifest
	QAFile  string `yaml:"qa_file"` // generated QA file location
	StoreDB string `yaml:"store"`   // sqlite run store location

	Sample struct {
		Variants  int    `yaml:"variants"`
		Rows      int    `yaml:"rows"`
		Seed      int64  `yaml:"seed"`
		Workers   int    `yaml:"workers"`      // archive concurrency
		MinFreeMB uint64 `yaml:"min_free_mb"`  // disk space guard for archiving
	} `yaml:"sample"`

	Templates []quiz.Template `yaml:"templates"`

	LMS struct {
		BaseURL      string        `yaml:"base_url"`
		Token        string        `yaml:"token"` // supports ${ENV_VAR} expansion
		CourseID     int64         `yaml:"course_id"`
		AssignmentID int64         `yaml:"assignment_id"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"lms"`

	Quiz struct {
		TitlePrefix    string `yaml:"title_prefix"`
		Description    string `yaml:"description"`
		TimeLimitMin   int    `yaml:"time_limit_min"`
		ShuffleAnswers bool   `yaml:"shuffle_answers"`
	} `yaml:"quiz"`

	Override struct {
		DueAt    time.Time `yaml:"due_at"`
		UnlockAt time.Time `yaml:"unlock_at"`
		LockAt   time.Time `yaml:"lock_at"`
	} `yaml:"override"`

	Notify []string `yaml:"notify"` // destination URLs, i.e. mailto: or slack:
}

// Load reads config file, expands env references in the token and validates.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(file) // nolint gosec // config location set by the operator
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", file, err)
	}

	res := &Config{}
	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("can't parse config %s: %w", file, err)
	}

	res.LMS.Token = os.ExpandEnv(res.LMS.Token)

	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", file, err)
	}
	log.Printf("[DEBUG] loaded config from %s, %d templates", file, len(res.Templates))
	return res, nil
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Master == "" {
		return fmt.Errorf("master dataset file is required")
	}
	if c.Out == "" {
		c.Out = "out"
	}
	if c.QAFile == "" {
		c.QAFile = "qa.json"
	}
	if c.StoreDB == "" {
		c.StoreDB = "dataquiz.db"
	}
	if c.Sample.Variants <= 0 {
		return fmt.Errorf("sample.variants has to be positive, got %d", c.Sample.Variants)
	}
	if c.LMS.Timeout == 0 {
		c.LMS.Timeout = 30 * time.Second
	}
	if c.Quiz.TitlePrefix == "" {
		c.Quiz.TitlePrefix = "Dataset Quiz"
	}

	for i, t := range c.Templates {
		if t.Name == "" {
			return fmt.Errorf("template %d: name is required", i+1)
		}
		if t.Text == "" {
			return fmt.Errorf("template %q: text is required", t.Name)
		}
		if t.Column == "" {
			return fmt.Errorf("template %q: column is required", t.Name)
		}
		if t.Stat == "" {
			return fmt.Errorf("template %q: stat is required", t.Name)
		}
	}

	if !c.Override.DueAt.IsZero() && !c.Override.LockAt.IsZero() && c.Override.LockAt.Before(c.Override.DueAt) {
		return fmt.Errorf("override.lock_at is before override.due_at")
	}
	return nil
}

// RequireLMS checks the fields only the publish stage needs. Kept out of
// Validate so sample/generate run without any LMS access configured.
func (c *Config) RequireLMS() error {
	if c.LMS.BaseURL == "" {
		return fmt.Errorf("lms.base_url is required")
	}
	if c.LMS.Token == "" {
		return fmt.Errorf("lms.token is required")
	}
	if c.LMS.CourseID == 0 {
		return fmt.Errorf("lms.course_id is required")
	}
	if c.LMS.AssignmentID == 0 {
		return fmt.Errorf("lms.assignment_id is required")
	}
	return nil
}
