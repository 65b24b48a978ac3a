package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/internal/draw"
	"secretsanta/internal/roster"
)

func TestObserveCountsByOutcome(t *testing.T) {
	r := New()
	r.Observe(draw.Outcome{Duration: time.Millisecond})
	r.Observe(draw.Outcome{Err: &draw.StallError{Kind: roster.Small}})
	r.Observe(draw.Outcome{Err: &draw.StallError{Kind: roster.Large}})
	r.Observe(draw.Outcome{Err: &draw.StallError{Kind: roster.Large}})
	r.Observe(draw.Outcome{Err: &draw.VerificationError{Rule: draw.RuleSelf}})

	assert.Equal(t, 5.0, testutil.ToFloat64(r.attempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.successes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stalls.WithLabelValues("small")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stalls.WithLabelValues("large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verifyFailure))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Observe(draw.Outcome{Err: &draw.StallError{Kind: roster.Small}})

	path := filepath.Join(t.TempDir(), "secretsanta.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "secretsanta_attempts_total 1"), out)
	assert.True(t, strings.Contains(out, `secretsanta_stalls_total{kind="small"} 1`), out)
}

func TestAttemptsHelp(t *testing.T) {
	r := New()
	r.Observe(draw.Outcome{})
	want := `
# HELP secretsanta_attempts_total Draw attempts finished.
# TYPE secretsanta_attempts_total counter
secretsanta_attempts_total 1
`
	require.NoError(t, testutil.CollectAndCompare(r.attempts, strings.NewReader(want)))
}

func TestWriteTextfileBadDir(t *testing.T) {
	r := New()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
