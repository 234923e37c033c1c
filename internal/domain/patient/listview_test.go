package patient

import (
	"context"
	"testing"
)

func newTestListView(t *testing.T) (*ListView, *Service) {
	t.Helper()
	svc, _, _ := newTestService()
	ctx := context.Background()

	for _, fixture := range []struct{ regID, name string }{
		{"123456789012", "Asha Verma"},
		{"987654321098", "Ben Dsouza"},
		{"111122223333", "Carla Mendes"},
	} {
		p := &Patient{RegID: fixture.regID, Name: fixture.name}
		if err := svc.Create(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", fixture.name, err)
		}
	}

	lv := NewListView(svc)
	if err := lv.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return lv, svc
}

func TestListView_VisibleOrderedByName(t *testing.T) {
	lv, _ := newTestListView(t)

	got := lv.Visible()
	want := []string{"Asha Verma", "Ben Dsouza", "Carla Mendes"}
	if len(got) != len(want) {
		t.Fatalf("got %d patients, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.Name != want[i] {
			t.Errorf("visible[%d] = %q, want %q", i, p.Name, want[i])
		}
	}
}

func TestListView_SetTermRederives(t *testing.T) {
	lv, _ := newTestListView(t)

	lv.SetTerm("ASHA")
	got := lv.Visible()
	if len(got) != 1 || got[0].Name != "Asha Verma" {
		t.Fatalf("filtered = %v", got)
	}

	// Clearing the term restores the full sequence.
	lv.SetTerm("")
	if got := lv.Visible(); len(got) != 3 {
		t.Errorf("cleared term shows %d patients, want 3", len(got))
	}
}

func TestListView_SearchByUniqueID(t *testing.T) {
	lv, _ := newTestListView(t)

	// 987654321098 reversed
	lv.SetTerm("890123456789")
	got := lv.Visible()
	if len(got) != 1 || got[0].Name != "Ben Dsouza" {
		t.Errorf("filtered = %v, want Ben Dsouza by unique id", got)
	}
}

func TestListView_DeleteRefetches(t *testing.T) {
	lv, _ := newTestListView(t)
	ctx := context.Background()

	lv.SetTerm("a") // every seeded name contains an "a"
	visible := lv.Visible()
	if len(visible) != 3 {
		t.Fatalf("precondition: filtered = %d, want 3", len(visible))
	}

	if err := lv.Delete(ctx, visible[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := lv.Visible()
	if len(got) != 2 {
		t.Fatalf("after delete filtered = %d, want 2", len(got))
	}
	for _, p := range got {
		if p.ID == visible[0].ID {
			t.Error("deleted patient still visible")
		}
	}
}
