package tag

import "testing"

func mustKey(t *testing.T, name string) Key {
	t.Helper()
	k, err := NewKey(name)
	if err != nil {
		t.Fatalf("NewKey(%q): %v", name, err)
	}
	return k
}

func mustValue(t *testing.T, s string) Value {
	t.Helper()
	v, err := NewValue(s)
	if err != nil {
		t.Fatalf("NewValue(%q): %v", s, err)
	}
	return v
}

func TestBuilderRoundTrip(t *testing.T) {
	kA, kB := mustKey(t, "a"), mustKey(t, "b")
	vX, vY := mustValue(t, "x"), mustValue(t, "y")

	b := NewBuilder().Put(kA, vX).Put(kB, vY)
	ctx := b.Build()

	rebuilt := ToBuilder(ctx).Build()
	if !ctx.Equal(rebuilt) {
		t.Errorf("ToBuilder(ctx).Build() != ctx")
	}
}

func TestContextEqualityIgnoresInsertionOrder(t *testing.T) {
	kA, kB := mustKey(t, "a"), mustKey(t, "b")
	vX, vY := mustValue(t, "x"), mustValue(t, "y")

	c1 := NewBuilder().Put(kA, vX).Put(kB, vY).Build()
	c2 := NewBuilder().Put(kB, vY).Put(kA, vX).Build()

	if !c1.Equal(c2) {
		t.Errorf("expected contexts built in different order to be equal")
	}
}

func TestRemove(t *testing.T) {
	kA := mustKey(t, "a")
	vX := mustValue(t, "x")

	b := NewBuilder().Put(kA, vX)
	b.Remove(kA)
	ctx := b.Build()

	if ctx.Len() != 0 {
		t.Errorf("expected empty context after remove, got len=%d", ctx.Len())
	}
}

func TestEmptyValueRoundTrips(t *testing.T) {
	kA := mustKey(t, "a")
	vEmpty := mustValue(t, "")

	ctx := NewBuilder().Put(kA, vEmpty).Build()
	v, ok := ctx.Value(kA)
	if !ok {
		t.Fatalf("expected key to be present")
	}
	if v.String() != "" {
		t.Errorf("expected empty string value, got %q", v.String())
	}
}

func TestInvalidKeyAndValue(t *testing.T) {
	if _, err := NewKey(""); err == nil {
		t.Errorf("expected error for empty key")
	}
	if _, err := NewKey("non-ascii-é"); err == nil {
		t.Errorf("expected error for non-ASCII key")
	}
	if _, err := NewValue("non-ascii-é"); err == nil {
		t.Errorf("expected error for non-ASCII value")
	}
}

func TestBuilderIndependentAfterBuild(t *testing.T) {
	kA := mustKey(t, "a")
	vX, vY := mustValue(t, "x"), mustValue(t, "y")

	b := NewBuilder().Put(kA, vX)
	ctx1 := b.Build()
	b.Put(kA, vY)
	ctx2 := b.Build()

	v1, _ := ctx1.Value(kA)
	if v1 != vX {
		t.Errorf("expected ctx1 to be unaffected by later builder mutation")
	}
	v2, _ := ctx2.Value(kA)
	if v2 != vY {
		t.Errorf("expected ctx2 to reflect later builder mutation")
	}
}
