package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", "u1") || !m.Enabled("c", "u1") || !m.Enabled("e", "u1") {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", "u1") || m.Enabled("d", "u1") || m.Enabled("f", "u1") {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("unknown", "u1") {
		t.Fatal("unconfigured flags must be off")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,broken=abc%")

	if !m.Enabled("always", "") {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", "u1") {
		t.Fatal("0% rollout should always be disabled")
	}
	if m.Enabled("broken", "u1") {
		t.Fatal("malformed percentage should be disabled")
	}

	first := m.Enabled("canary", "user-42")
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", "user-42"); got != first {
			t.Fatal("rollout evaluation must be deterministic per subject")
		}
	}

	if m.Enabled("canary", "") {
		t.Fatal("percentage rollout requires a subject")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,Comment_Auto_Approve=ON, y = 20% ,z=off ")

	names := m.Names()
	if len(names) != 3 || names[0] != CommentAutoApprove {
		t.Fatalf("unexpected flag names: %#v", names)
	}

	snap := m.Snapshot("u-123")
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
	if !snap[CommentAutoApprove] || snap["z"] {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.Enabled(SearchIndex, "u1") {
		t.Fatal("nil manager must report flags off")
	}
	if len(m.Snapshot("u1")) != 0 {
		t.Fatal("nil manager snapshot must be empty")
	}
}
