package review

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

func TestConsoleAnswers(t *testing.T) {
	report := &core.PassReport{RunID: "run-1", Ingested: 3}
	report.RecordRoute("requests_review", 2)

	tests := []struct {
		input string
		want  bool
	}{
		{"\n", true},
		{"y\n", true},
		{"YES", true},
		{"n\n", false},
		{"q\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tt.input), &out, zap.NewNop())
			ok, err := c.AwaitReview(context.Background(), report)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "requests_review")
		})
	}
}

func TestConsoleCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConsole(r, io.Discard, zap.NewNop())
	ok, err := c.AwaitReview(ctx, &core.PassReport{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuto(t *testing.T) {
	ok, err := NewAuto(zap.NewNop()).AwaitReview(context.Background(), &core.PassReport{})
	require.NoError(t, err)
	assert.True(t, ok)
}
