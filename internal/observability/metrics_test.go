package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStartRegistersOnce(t *testing.T) {
	Start("")
	Start("")

	before := testutil.ToFloat64(RowsTotal.WithLabelValues("ok"))
	RowsTotal.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(RowsTotal.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("rows_total{ok} = %v, want %v", got, before+1)
	}

	if err := prometheus.Register(RowsTotal); err == nil {
		t.Fatal("RowsTotal should already be registered")
	}
}
