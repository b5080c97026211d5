package metrics_test

import (
	"strings"
	"testing"
	"time"

	// Packages
	metrics "github.com/mutablelogic/go-aitemplate/pkg/metrics"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	prometheus "github.com/prometheus/client_golang/prometheus"
	testutil "github.com/prometheus/client_golang/prometheus/testutil"
	assert "github.com/stretchr/testify/assert"
)

type body struct{ *strings.Reader }

func (body) Close() error { return nil }

func Test_metrics_001(t *testing.T) {
	assert := assert.New(t)

	reg := prometheus.NewPedanticRegistry()
	m, err := metrics.New(reg)
	if !assert.NoError(err) {
		t.FailNow()
	}

	input := "event: token\ndata: {\"token\":\"a\"}\n\n" +
		"event: tool_call\ndata: {broken\n\n" +
		"data: untyped\n\n" +
		"event: done\ndata: done\n\n"
	s := stream.NewSession(body{strings.NewReader(input)}, stream.WithObserver(m))
	for _, err := range s.Events() {
		assert.NoError(err)
	}

	expected := `
# HELP aitemplate_stream_events_total Events delivered to consumers
# TYPE aitemplate_stream_events_total counter
aitemplate_stream_events_total{event="done"} 1
aitemplate_stream_events_total{event="token"} 1
# HELP aitemplate_stream_frames_dropped_total Frames dropped because they could not be decoded
# TYPE aitemplate_stream_frames_dropped_total counter
aitemplate_stream_frames_dropped_total{event="tool_call"} 1
aitemplate_stream_frames_dropped_total{event="unnamed"} 1
# HELP aitemplate_stream_sessions_total Stream sessions by terminal outcome
# TYPE aitemplate_stream_sessions_total counter
aitemplate_stream_sessions_total{outcome="done"} 1
`
	assert.NoError(testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"aitemplate_stream_events_total", "aitemplate_stream_frames_dropped_total", "aitemplate_stream_sessions_total"))
	count, err := testutil.GatherAndCount(reg, "aitemplate_stream_duration_seconds")
	assert.NoError(err)
	assert.Equal(1, count)
}

func Test_metrics_002(t *testing.T) {
	assert := assert.New(t)

	// Registering twice with the same registry fails
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	assert.NoError(err)
	_, err = metrics.New(reg)
	assert.Error(err)

	// A nil registry leaves the collectors unregistered
	m, err := metrics.New(nil)
	assert.NoError(err)
	m.Finished(stream.OutcomeCancelled, time.Second)
	assert.Equal(float64(1), testutil.ToFloat64(m.Collectors()[0]))
}
