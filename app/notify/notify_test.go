package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.Nil(t, New(nil, time.Second), "no destinations, no service")

	s := New([]string{"mailto:prof@example.edu"}, 0)
	require.NotNil(t, s)
	assert.Equal(t, 10*time.Second, s.Timeout, "default timeout")
}

func TestService_Send(t *testing.T) {
	var sent []string
	s := New([]string{"mailto:a@x", "slack:general"}, time.Second)
	s.sendFn = func(_ context.Context, dest, text string) error {
		sent = append(sent, dest)
		assert.Contains(t, text, "publish completed")
		assert.Contains(t, text, "2 versions published")
		return nil
	}

	err := s.Send(context.Background(), "publish completed", "2 versions published")
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:a@x", "slack:general"}, sent)
}

func TestService_SendPartialFailure(t *testing.T) {
	s := New([]string{"mailto:a@x", "slack:general"}, time.Second)
	s.sendFn = func(_ context.Context, dest, _ string) error {
		if dest == "mailto:a@x" {
			return fmt.Errorf("smtp down")
		}
		return nil
	}

	err := s.Send(context.Background(), "subj", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestMakeSummaryHTML(t *testing.T) {
	html, err := MakeSummaryHTML("publish failed", "3 of 10 versions failed")
	require.NoError(t, err)
	assert.Contains(t, html, "publish failed")
	assert.Contains(t, html, "3 of 10 versions failed")
	assert.Contains(t, html, "<!DOCTYPE html>")
}
