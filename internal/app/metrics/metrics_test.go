package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/challenges/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/challenges/{id}", "418"))
	for _, id := range []string{"1", "2", "3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/challenges/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/challenges/{id}", "418"))
	if after-before != 3 {
		t.Fatalf("expected 3 requests under one template, got %v", after-before)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(commitmentsCreated.WithLabelValues("race"))
	RecordCommitment("race")
	if got := testutil.ToFloat64(commitmentsCreated.WithLabelValues("race")); got-before != 1 {
		t.Fatalf("expected race counter to grow by 1, got %v", got-before)
	}

	RecordGatewayRequest("select challenges", 0, 0)
	if got := testutil.ToFloat64(gatewayRequests.WithLabelValues("select challenges", "error")); got < 1 {
		t.Fatalf("expected gateway error sample")
	}

	SetCircuitState(1)
	if got := testutil.ToFloat64(circuitState); got != 1 {
		t.Fatalf("expected circuit state 1, got %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordGatewayRequest("rpc get_feed", 200, 5*time.Millisecond)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bealive_gateway_requests_total") {
		t.Fatalf("expected gateway metric in exposition")
	}
}
