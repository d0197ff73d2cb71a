package router

import (
	"testing"
	"time"

	"akademik-ai/internal/cache"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Route
	}{
		{name: "empty query", query: "", want: RouteDefaultRAG},
		{name: "khs keyword", query: "tolong rekap khs semester 3", want: RouteAnalyticalTabular},
		{name: "ipk keyword", query: "berapa ipk saya sekarang?", want: RouteAnalyticalTabular},
		{name: "jadwal hari", query: "jadwal hari senin apa saja", want: RouteAnalyticalTabular},
		{name: "policy keyword", query: "apa syarat lulus sarjana?", want: RouteSemanticPolicy},
		{name: "cuti keyword", query: "cara cuti kuliah gimana", want: RouteSemanticPolicy},
		{name: "out of domain", query: "prediksi skor bola malam ini", want: RouteOutOfDomain},
		{name: "recipe out of domain", query: "resep nasi goreng enak", want: RouteOutOfDomain},
		{name: "unmatched falls through", query: "jelaskan materi minggu lalu", want: RouteDefaultRAG},
		{name: "analytical wins over out of domain", query: "rekap nilai film dokumenter", want: RouteAnalyticalTabular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			if got.Route != tt.want {
				t.Errorf("Classify(%q).Route = %q, want %q", tt.query, got.Route, tt.want)
			}
			if got.Route != RouteDefaultRAG && len(got.Matched) == 0 {
				t.Error("matched route should carry patterns")
			}
		})
	}
}

func TestRouter_Disabled(t *testing.T) {
	r := New(false, cache.Nop{}, time.Minute)

	got := r.Resolve(1, "rekap khs semester 3")
	if got.Route != RouteDefaultRAG {
		t.Errorf("Route = %q, want default_rag when disabled", got.Route)
	}
	if got.Reason != "router_disabled" {
		t.Errorf("Reason = %q, want router_disabled", got.Reason)
	}
}

func TestRouter_CachesNormalizedQuery(t *testing.T) {
	c := cache.New()
	r := New(true, c, time.Minute)

	first := r.Resolve(1, "Rekap KHS semester 3")
	if first.Route != RouteAnalyticalTabular {
		t.Fatalf("Route = %q, want analytical_tabular", first.Route)
	}
	if c.Len() != 1 {
		t.Fatalf("cache Len() = %d, want 1", c.Len())
	}

	// Case variants share one cache entry.
	second := r.Resolve(1, "rekap khs SEMESTER 3")
	if second.Route != first.Route {
		t.Errorf("cached route = %q, want %q", second.Route, first.Route)
	}
	if c.Len() != 1 {
		t.Errorf("cache Len() = %d after variant query, want 1", c.Len())
	}
}

func TestRouter_CacheKeyIsUserScoped(t *testing.T) {
	c := cache.New()
	r := New(true, c, time.Minute)

	r.Resolve(1, "rekap khs semester 3")
	r.Resolve(2, "rekap khs semester 3")

	// Same query from different users must not share an entry.
	if c.Len() != 2 {
		t.Errorf("cache Len() = %d, want 2 user-scoped entries", c.Len())
	}
}

func TestRouter_ZeroTTLBypassesCache(t *testing.T) {
	c := cache.New()
	r := New(true, c, 0)

	r.Resolve(1, "rekap khs")
	if c.Len() != 0 {
		t.Errorf("cache Len() = %d, want 0 with zero TTL", c.Len())
	}
}
