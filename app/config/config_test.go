package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ed-tools/dataquiz/app/quiz"
)

func templateWith(name, text, column, stat string) quiz.Template {
	return quiz.Template{Name: name, Text: text, Column: column, Stat: stat}
}

func TestLoad(t *testing.T) {
	t.Setenv("LMS_TOKEN", "secret-token")

	c, err := Load("testfiles/dataquiz.yml")
	require.NoError(t, err)

	assert.Equal(t, "data/master.csv", c.Master)
	assert.Equal(t, 25, c.Sample.Variants)
	assert.Equal(t, 12, c.Sample.Rows)
	assert.Equal(t, int64(42), c.Sample.Seed)
	assert.Equal(t, "secret-token", c.LMS.Token, "env reference expanded")
	assert.Equal(t, int64(101), c.LMS.CourseID)
	assert.Equal(t, 30*time.Second, c.LMS.Timeout, "default timeout")
	require.Len(t, c.Templates, 2)
	assert.Equal(t, "mean-temp", c.Templates[0].Name)
	assert.Equal(t, []string{"mailto:prof@example.edu"}, c.Notify)
	assert.NoError(t, c.RequireLMS())
}

func TestLoad_Failed(t *testing.T) {
	_, err := Load("testfiles/no-file.yml")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("master: [broken"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	mk := func(mutate func(c *Config)) *Config {
		c := &Config{Master: "m.csv"}
		c.Sample.Variants = 3
		mutate(c)
		return c
	}

	tbl := []struct {
		name   string
		cfg    *Config
		errStr string
	}{
		{"no master", mk(func(c *Config) { c.Master = "" }), "master dataset file is required"},
		{"bad variants", mk(func(c *Config) { c.Sample.Variants = 0 }), "sample.variants"},
		{"unnamed template", mk(func(c *Config) {
			c.Templates = append(c.Templates, templateWith("", "t", "col", "mean"))
		}), "name is required"},
		{"no text", mk(func(c *Config) {
			c.Templates = append(c.Templates, templateWith("q", "", "col", "mean"))
		}), "text is required"},
		{"no column", mk(func(c *Config) {
			c.Templates = append(c.Templates, templateWith("q", "t", "", "mean"))
		}), "column is required"},
		{"no stat", mk(func(c *Config) {
			c.Templates = append(c.Templates, templateWith("q", "t", "col", ""))
		}), "stat is required"},
		{"lock before due", mk(func(c *Config) {
			c.Override.DueAt = time.Date(2026, 9, 10, 23, 59, 0, 0, time.UTC)
			c.Override.LockAt = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		}), "lock_at is before"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errStr)
		})
	}

	c := mk(func(*Config) {})
	require.NoError(t, c.Validate())
	assert.Equal(t, "out", c.Out, "defaults filled")
	assert.Equal(t, "qa.json", c.QAFile)
	assert.Equal(t, "dataquiz.db", c.StoreDB)
	assert.Equal(t, "Dataset Quiz", c.Quiz.TitlePrefix)
}

func TestRequireLMS(t *testing.T) {
	c := &Config{}
	assert.ErrorContains(t, c.RequireLMS(), "base_url")
	c.LMS.BaseURL = "https://lms.example.edu"
	assert.ErrorContains(t, c.RequireLMS(), "token")
	c.LMS.Token = "tkn"
	assert.ErrorContains(t, c.RequireLMS(), "course_id")
	c.LMS.CourseID = 1
	assert.ErrorContains(t, c.RequireLMS(), "assignment_id")
	c.LMS.AssignmentID = 2
	assert.NoError(t, c.RequireLMS())
}
