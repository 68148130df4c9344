package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer edit", role: RoleViewer, action: ActionEdit, allow: false},
		{name: "member edit", role: RoleMember, action: ActionEdit, allow: true},
		{name: "member plan", role: RoleMember, action: ActionPlan, allow: false},
		{name: "planner plan", role: RolePlanner, action: ActionPlan, allow: true},
		{name: "planner lead", role: RolePlanner, action: ActionLead, allow: true},
		{name: "planner admin", role: RolePlanner, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("planner") != RolePlanner {
		t.Fatal("known role must pass through")
	}
	if Normalize("") != RoleViewer {
		t.Fatal("unknown role must default to viewer")
	}
}
