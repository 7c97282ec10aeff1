package store

import "testing"

func TestParentBase(t *testing.T) {
	tests := []struct {
		path       string
		wantParent string
		wantBase   string
	}{
		{"invoiceNumber", "", "invoiceNumber"},
		{"trucks/t1", "trucks", "t1"},
		{"creditors/c1/expenses/e1", "creditors/c1/expenses", "e1"},
	}

	for _, tt := range tests {
		if got := Parent(tt.path); got != tt.wantParent {
			t.Errorf("Parent(%q) = %q, want %q", tt.path, got, tt.wantParent)
		}
		if got := Base(tt.path); got != tt.wantBase {
			t.Errorf("Base(%q) = %q, want %q", tt.path, got, tt.wantBase)
		}
	}
}

func TestKeyEscapesSlash(t *testing.T) {
	if got := Key("A/1 2"); got != "A%2F1%202" {
		t.Errorf("Key() = %q", got)
	}
}

func TestAffects(t *testing.T) {
	tests := []struct {
		watched string
		ev      Event
		want    bool
	}{
		{"trucks", Event{Type: EventPut, Path: "trucks/t1"}, true},
		{"trucks/t1", Event{Type: EventPut, Path: "trucks/t1"}, true},
		{"trucks/t1", Event{Type: EventPut, Path: "trucks/t10"}, false},
		{"trucks/t1", Event{Type: EventPut, Path: "trucks"}, false},
		{"trucks/t1", Event{Type: EventDelete, Path: "trucks"}, true},
		{"trucks", Event{Type: EventPut, Path: "trucksX/t1"}, false},
	}

	for _, tt := range tests {
		if got := affects(tt.watched, tt.ev); got != tt.want {
			t.Errorf("affects(%q, %s %q) = %v, want %v", tt.watched, tt.ev.Type, tt.ev.Path, got, tt.want)
		}
	}
}
