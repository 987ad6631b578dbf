package neo4jdb

import (
	"testing"

	"github.com/yungbote/categorylink/internal/config"
)

func TestResolveURI(t *testing.T) {
	cases := []struct {
		address   string
		encrypted bool
		trust     config.TrustMode
		want      string
	}{
		{"bolt://localhost:7687", false, config.TrustSystem, "bolt://localhost:7687"},
		{"bolt://localhost:7687", true, config.TrustSystem, "bolt+s://localhost:7687"},
		{"bolt://localhost:7687", true, config.TrustAny, "bolt+ssc://localhost:7687"},
		{"neo4j://db.internal:7687", true, config.TrustSystem, "neo4j+s://db.internal:7687"},
		{"neo4j+ssc://db.internal:7687", false, config.TrustSystem, "neo4j+ssc://db.internal:7687"},
		{" BOLT://localhost:7687 ", false, config.TrustSystem, "bolt://localhost:7687"},
	}
	for _, tc := range cases {
		got, err := ResolveURI(tc.address, tc.encrypted, tc.trust)
		if err != nil {
			t.Fatalf("%q: unexpected err: %v", tc.address, err)
		}
		if got != tc.want {
			t.Fatalf("%q: want=%q got=%q", tc.address, tc.want, got)
		}
	}
}

func TestResolveURIRejectsBadAddresses(t *testing.T) {
	for _, addr := range []string{"", "localhost:7687", "http://localhost:7474", "bolt://"} {
		if _, err := ResolveURI(addr, false, config.TrustSystem); err == nil {
			t.Fatalf("%q: expected error", addr)
		}
	}
}
