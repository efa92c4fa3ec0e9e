package routes

import "testing"

func TestResolveProtectedWithoutSession(t *testing.T) {
	for _, r := range Protected {
		if got := Resolve(false, r); got != Login {
			t.Fatalf("Resolve(false, %s) = %s, want login", r, got)
		}
	}
}

func TestResolveProtectedWithSession(t *testing.T) {
	for _, r := range Protected {
		if got := Resolve(true, r); got != r {
			t.Fatalf("Resolve(true, %s) = %s, want %s", r, got, r)
		}
	}
}

func TestResolveAuthRoutesAlwaysReachable(t *testing.T) {
	for _, r := range []ID{Login, Signup} {
		if got := Resolve(false, r); got != r {
			t.Fatalf("Resolve(false, %s) = %s", r, got)
		}
		if got := Resolve(true, r); got != r {
			t.Fatalf("Resolve(true, %s) = %s", r, got)
		}
	}
}

func TestResolveUnknownFallsBackToDashboard(t *testing.T) {
	if got := Resolve(true, ID("billing-v2")); got != Dashboard {
		t.Fatalf("unknown route with session: got %s, want dashboard", got)
	}
	if got := Resolve(false, ID("billing-v2")); got != Login {
		t.Fatalf("unknown route without session: got %s, want login", got)
	}
}

func TestInitialResumesPersistedRoute(t *testing.T) {
	if got := Initial(true, Flow); got != Flow {
		t.Fatalf("authenticated cold start should resume flow, got %s", got)
	}
	if got := Initial(false, Signup); got != Signup {
		t.Fatalf("anonymous cold start should resume auth route, got %s", got)
	}
}

func TestInitialDefaults(t *testing.T) {
	if got := Initial(false, Flow); got != Login {
		t.Fatalf("anonymous + protected persisted route: got %s, want login", got)
	}
	if got := Initial(true, ""); got != Dashboard {
		t.Fatalf("authenticated + no persisted route: got %s, want dashboard", got)
	}
	if got := Initial(false, ""); got != Login {
		t.Fatalf("anonymous + no persisted route: got %s, want login", got)
	}
}

func TestDemoteOnSessionLoss(t *testing.T) {
	got, forced := Demote(false, Dashboard)
	if !forced || got != Login {
		t.Fatalf("Demote(false, dashboard) = (%s, %t), want (login, true)", got, forced)
	}

	got, forced = Demote(false, Signup)
	if forced || got != Signup {
		t.Fatalf("auth route must survive session loss, got (%s, %t)", got, forced)
	}

	got, forced = Demote(true, Bots)
	if forced || got != Bots {
		t.Fatalf("authenticated session must not be demoted, got (%s, %t)", got, forced)
	}
}
