//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQuotaCounters(t *testing.T) {
	before := testutil.ToFloat64(quotaConsumedTotal.WithLabelValues("free", "courses"))
	AddQuotaConsumed("Free", "Courses", 2)
	AddQuotaConsumed("free", "courses", 0)
	after := testutil.ToFloat64(quotaConsumedTotal.WithLabelValues("free", "courses"))
	if after-before != 2 {
		t.Errorf("expected +2, got %v", after-before)
	}
}

func TestMustRegister_Idempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
