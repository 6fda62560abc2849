package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetModelStatus(t *testing.T) {
	SetModelStatus(ModelStatusPlaceholder)

	assert.Equal(t, 1.0, testutil.ToFloat64(ModelStatus.WithLabelValues(ModelStatusPlaceholder)))
	assert.Equal(t, 0.0, testutil.ToFloat64(ModelStatus.WithLabelValues(ModelStatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(ModelStatus.WithLabelValues(ModelStatusError)))

	SetModelStatus(ModelStatusSuccess)
	assert.Equal(t, 1.0, testutil.ToFloat64(ModelStatus.WithLabelValues(ModelStatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(ModelStatus.WithLabelValues(ModelStatusPlaceholder)))
}

func TestAssessmentsTotal(t *testing.T) {
	before := testutil.ToFloat64(AssessmentsTotal.WithLabelValues("high", "placeholder"))
	AssessmentsTotal.WithLabelValues("high", "placeholder").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AssessmentsTotal.WithLabelValues("high", "placeholder")))
}
