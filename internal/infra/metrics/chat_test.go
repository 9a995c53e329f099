package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTurn_CountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(turnsTotal.WithLabelValues("gpt-4", "cancelled"))
	ObserveTurn(" GPT-4 ", "Cancelled", 1200*time.Millisecond)
	after := testutil.ToFloat64(turnsTotal.WithLabelValues("gpt-4", "cancelled"))
	if after-before != 1 {
		t.Fatalf("want +1 cancelled turn, got %v", after-before)
	}
}

func TestIncDeltaAndHTTPError(t *testing.T) {
	d0 := testutil.ToFloat64(deltasTotal.WithLabelValues("unknown"))
	IncDelta("")
	IncDelta("")
	if got := testutil.ToFloat64(deltasTotal.WithLabelValues("unknown")) - d0; got != 2 {
		t.Fatalf("want +2 deltas for empty model label, got %v", got)
	}

	e0 := testutil.ToFloat64(upstreamHTTPErrors.WithLabelValues("401"))
	IncUpstreamHTTPError(401)
	if got := testutil.ToFloat64(upstreamHTTPErrors.WithLabelValues("401")) - e0; got != 1 {
		t.Fatalf("want +1 401 error, got %v", got)
	}
}

func TestMustRegister_Idempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
