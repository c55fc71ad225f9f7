// Package quiz derives per-version question/answer pairs from dataset variants.
// A question template names a numeric column and a statistic, the answer is
// computed from the variant's rows and the text rendered with text/template.
package quiz

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/ed-tools/dataquiz/app/dataset"
)

// Template describes one generated question. Text is a text/template body with
// {{.Column}} and {{.Rows}} available.
type Template struct {
	Name      string  `yaml:"name" json:"name"`
	Text      string  `yaml:"text" json:"text"`
	Column    string  `yaml:"column" json:"column"`
	Stat      string  `yaml:"stat" json:"stat"` // count, sum, mean, min, max, stddev
	Tolerance float64 `yaml:"tolerance" json:"tolerance,omitempty"`
	Points    float64 `yaml:"points" json:"points,omitempty"`
}

// Render computes the answer for the given variant and renders the question text.
// Fails if the named column is absent or holds non-numeric values.
func (t Template) Render(v *dataset.Variant) (Question, error) {
	idx, ok := v.Column(t.Column)
	if !ok {
		return Question{}, fmt.Errorf("template %q: no column %q in variant %s", t.Name, t.Column, v.Version)
	}

	values := make([]float64, 0, len(v.Rows))
	for i, row := range v.Rows {
		val, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil {
			return Question{}, fmt.Errorf("template %q: non-numeric value %q in column %q, row %d of variant %s",
				t.Name, row[idx], t.Column, i+1, v.Version)
		}
		values = append(values, val)
	}

	answer, err := statistic(t.Stat, values)
	if err != nil {
		return Question{}, fmt.Errorf("template %q: %w", t.Name, err)
	}

	tmpl, err := template.New(t.Name).Parse(t.Text)
	if err != nil {
		return Question{}, fmt.Errorf("template %q: can't parse text: %w", t.Name, err)
	}
	buf := bytes.Buffer{}
	data := struct {
		Column string
		Rows   int
	}{Column: t.Column, Rows: len(v.Rows)}
	if err := tmpl.Execute(&buf, data); err != nil {
		return Question{}, fmt.Errorf("template %q: can't render text: %w", t.Name, err)
	}

	points := t.Points
	if points == 0 {
		points = 1
	}
	return Question{Name: t.Name, Text: buf.String(), Answer: round(answer), Tolerance: t.Tolerance, Points: points}, nil
}

// statistic computes the named aggregate over values.
func statistic(stat string, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("no values to aggregate")
	}
	switch stat {
	case "count":
		return float64(len(values)), nil
	case "sum":
		return sum(values), nil
	case "mean":
		return sum(values) / float64(len(values)), nil
	case "min":
		res := values[0]
		for _, v := range values[1:] {
			res = math.Min(res, v)
		}
		return res, nil
	case "max":
		res := values[0]
		for _, v := range values[1:] {
			res = math.Max(res, v)
		}
		return res, nil
	case "stddev":
		mean := sum(values) / float64(len(values))
		var sq float64
		for _, v := range values {
			sq += (v - mean) * (v - mean)
		}
		return math.Sqrt(sq / float64(len(values))), nil
	}
	return 0, fmt.Errorf("unknown statistic %q", stat)
}

func sum(values []float64) (res float64) {
	for _, v := range values {
		res += v
	}
	return res
}

// round trims the answer to 4 decimal places, enough for grading with tolerance
// and stable across platforms.
func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
