package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Init()
	before := testutil.ToFloat64(get().reads.WithLabelValues("RewardLedger", "Unreachable"))
	ObserveRead("RewardLedger", "Unreachable")
	ObserveRead("RewardLedger", "Unreachable")
	assert.Equal(t, before+2, testutil.ToFloat64(get().reads.WithLabelValues("RewardLedger", "Unreachable")))

	stale := testutil.ToFloat64(get().refreshes.WithLabelValues("full", "stale"))
	ObserveRefresh("full", false, time.Second)
	assert.Equal(t, stale+1, testutil.ToFloat64(get().refreshes.WithLabelValues("full", "stale")))

	confirmed := testutil.ToFloat64(get().transitions.WithLabelValues("Confirmed"))
	ObserveTransition("Confirmed")
	assert.Equal(t, confirmed+1, testutil.ToFloat64(get().transitions.WithLabelValues("Confirmed")))
}
