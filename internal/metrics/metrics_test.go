package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	RecordDBQuery("upsert", 5*time.Millisecond, nil)
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("upsert")); got != 0 {
		t.Fatalf("expected 0 errors, got %v", got)
	}

	RecordDBQuery("upsert", 5*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("upsert")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}

func TestRecordIngestionRun(t *testing.T) {
	RecordIngestionRun("gps", time.Second, 10, nil)
	if got := testutil.ToFloat64(IngestionRunsTotal.WithLabelValues("gps", "ok")); got != 1 {
		t.Fatalf("expected 1 ok run, got %v", got)
	}
	if got := testutil.ToFloat64(IngestionEntitiesUpserted.WithLabelValues("gps")); got != 10 {
		t.Fatalf("expected 10 upserted, got %v", got)
	}

	RecordIngestionRun("gps", time.Second, 0, errors.New("failed"))
	if got := testutil.ToFloat64(IngestionRunsTotal.WithLabelValues("gps", "error")); got != 1 {
		t.Fatalf("expected 1 error run, got %v", got)
	}
}

func TestRecordResolverLookup(t *testing.T) {
	before := testutil.ToFloat64(ResolverCacheHits)
	RecordResolverLookup(true)
	if got := testutil.ToFloat64(ResolverCacheHits); got != before+1 {
		t.Fatalf("expected hits incremented, got %v want %v", got, before+1)
	}

	before = testutil.ToFloat64(ResolverCacheMisses)
	RecordResolverLookup(false)
	if got := testutil.ToFloat64(ResolverCacheMisses); got != before+1 {
		t.Fatalf("expected misses incremented, got %v want %v", got, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Fatalf("expected active requests incremented")
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Fatalf("expected active requests decremented back")
	}
}

func TestRecordPlaceDetection(t *testing.T) {
	RecordPlaceDetection(time.Second, 3, 7, nil)
	if got := testutil.ToFloat64(PlacesDetected); got != 3 {
		t.Fatalf("expected 3 places, got %v", got)
	}
	if got := testutil.ToFloat64(VisitsDetected); got != 7 {
		t.Fatalf("expected 7 visits, got %v", got)
	}
	if got := testutil.ToFloat64(PlaceDetectionRuns.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok run, got %v", got)
	}
}
