package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveTurn("product_query")
	m.ObserveTurn("product_query")
	m.ObserveLLM("gemini", "ok", 0.5)
	m.ObserveLLM("gemini", "disabled", 0)
	m.ObserveDataFailure("search_products")

	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("product_query")); got != 2 {
		t.Fatalf("expected 2 product turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.llmTotal.WithLabelValues("gemini", "disabled")); got != 1 {
		t.Fatalf("expected 1 disabled call, got %v", got)
	}
	if got := testutil.CollectAndCount(m.llmLatency); got != 1 {
		t.Fatalf("expected latency series for enabled calls only, got %d", got)
	}
	if got := testutil.ToFloat64(m.dataFailures.WithLabelValues("search_products")); got != 1 {
		t.Fatalf("expected 1 data failure, got %v", got)
	}
}

func TestChatMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewChatMetrics(nil)
	m.ObserveTurn("general_conversation")
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected metrics registered on the default registerer")
	}
}

func TestChatMetricsNilSafe(t *testing.T) {
	var m *ChatMetrics
	m.ObserveTurn("referral_question")
	m.ObserveLLM("bedrock", "error", 0.1)
	m.ObserveDataFailure("user_details")
}
