package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFingerprint(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFingerprint(time.Now(), 1024, nil)
	m.ObserveFingerprint(time.Now(), 2048, errors.New("read failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fingerprints.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fingerprints.WithLabelValues("error")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.BytesHashed))
}

func TestObserveFingerprint_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveFingerprint(time.Now(), 1, nil) })
}
