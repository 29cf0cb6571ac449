package stats

import "testing"

func TestFloat64RegistersOnce(t *testing.T) {
	name := "stats_test/measure/a"
	m1, err := Float64(name, "desc", "1")
	if err != nil {
		t.Fatalf("Float64: %v", err)
	}
	m2, err := Float64(name, "desc", "1")
	if err != nil {
		t.Fatalf("re-registering identically should succeed: %v", err)
	}
	if m1 != m2 {
		t.Error("expected the same Measure value back")
	}
}

func TestDuplicateNameWithDifferentDefinitionFails(t *testing.T) {
	name := "stats_test/measure/b"
	if _, err := Float64(name, "desc", "1"); err != nil {
		t.Fatalf("Float64: %v", err)
	}
	if _, err := Float64(name, "different desc", "1"); err == nil {
		t.Error("expected ErrDuplicateMeasure for a conflicting re-registration")
	}
}

func TestInvalidNameRejected(t *testing.T) {
	if _, err := Float64("", "desc", "1"); err == nil {
		t.Error("expected ErrInvalidMeasureName for an empty name")
	}
}

func TestFindMeasure(t *testing.T) {
	name := "stats_test/measure/c"
	want, err := Int64(name, "desc", "1")
	if err != nil {
		t.Fatalf("Int64: %v", err)
	}
	got, ok := FindMeasure(name)
	if !ok || got != want {
		t.Errorf("FindMeasure(%q) = %v, %v; want %v, true", name, got, ok, want)
	}
}
