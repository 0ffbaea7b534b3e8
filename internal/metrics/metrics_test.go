package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOutcome(t *testing.T) {
	before := testutil.ToFloat64(PapersTotal.WithLabelValues("updated"))
	RecordOutcome("updated")
	RecordOutcome("updated")
	assert.Equal(t, before+2, testutil.ToFloat64(PapersTotal.WithLabelValues("updated")))
}

func TestRecordStage(t *testing.T) {
	before := testutil.ToFloat64(StageErrors.WithLabelValues("extract"))
	RecordStage("extract", 0.2, false)
	assert.Equal(t, before, testutil.ToFloat64(StageErrors.WithLabelValues("extract")))

	RecordStage("extract", 0.2, true)
	assert.Equal(t, before+1, testutil.ToFloat64(StageErrors.WithLabelValues("extract")))
	assert.Positive(t, testutil.CollectAndCount(StageDuration))
}
