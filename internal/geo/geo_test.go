package geo

import (
	"math"
	"testing"
)

const eps = 1e-12

func TestNormalizeAngle_AlreadyCanonical(t *testing.T) {
	for _, a := range []float64{0, 1, math.Pi, FullTurn - 1e-9} {
		if got := NormalizeAngle(a); math.Abs(got-a) > eps {
			t.Errorf("NormalizeAngle(%v) = %v, want unchanged", a, got)
		}
	}
}

func TestNormalizeAngle_Negative(t *testing.T) {
	got := NormalizeAngle(-math.Pi / 2)
	want := 3 * math.Pi / 2
	if math.Abs(got-want) > eps {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalizeAngle_FullTurnMapsToZero(t *testing.T) {
	if got := NormalizeAngle(FullTurn); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := NormalizeAngle(-FullTurn); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestNormalizeAngle_LargeInputsStayInRange(t *testing.T) {
	inputs := []float64{1e9, -1e9, 12345.678, -0.0, -1e-300, 7 * FullTurn, -7*FullTurn - 1e-15}
	for _, a := range inputs {
		got := NormalizeAngle(a)
		if got < 0 || got >= FullTurn {
			t.Errorf("NormalizeAngle(%v) = %v, out of [0, 2π)", a, got)
		}
	}
}

func TestDistance_SamePointIsZero(t *testing.T) {
	if d := Distance(3.5, -7.25, 3.5, -7.25); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestDistance_345(t *testing.T) {
	if d := Distance(0, 0, 3, 4); math.Abs(d-5) > eps {
		t.Errorf("expected 5, got %v", d)
	}
	if d := Distance(3, 4, 0, 0); math.Abs(d-5) > eps {
		t.Errorf("distance should be symmetric, got %v", d)
	}
}

func TestBearing_Cardinals(t *testing.T) {
	cases := []struct {
		name       string
		toX, toY   float64
		wantRadian float64
	}{
		{"east", 1, 0, 0},
		{"north", 0, 1, math.Pi / 2},
		{"west", -1, 0, math.Pi},
		{"south", 0, -1, 3 * math.Pi / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Bearing(0, 0, tc.toX, tc.toY)
			if math.Abs(got-tc.wantRadian) > eps {
				t.Errorf("expected %v, got %v", tc.wantRadian, got)
			}
		})
	}
}

func TestBearing_TranslationInvariant(t *testing.T) {
	base := Bearing(1, 2, 7, -3)
	for _, off := range [][2]float64{{100, 100}, {-55.5, 12}, {1e6, -1e6}} {
		got := Bearing(1+off[0], 2+off[1], 7+off[0], -3+off[1])
		if math.Abs(got-base) > 1e-9 {
			t.Errorf("offset %v: expected %v, got %v", off, base, got)
		}
	}
}

func TestWrapSigned_TieBreakLeavesPiUnchanged(t *testing.T) {
	if got := WrapSigned(math.Pi); got != math.Pi {
		t.Errorf("expected +π unchanged, got %v", got)
	}
	if got := WrapSigned(-math.Pi); got != -math.Pi {
		t.Errorf("expected -π unchanged, got %v", got)
	}
}

func TestWrapSigned_Folds(t *testing.T) {
	got := WrapSigned(3 * math.Pi / 2)
	if math.Abs(got-(-math.Pi/2)) > eps {
		t.Errorf("expected -π/2, got %v", got)
	}
	got = WrapSigned(-3 * math.Pi / 2)
	if math.Abs(got-math.Pi/2) > eps {
		t.Errorf("expected π/2, got %v", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1, 0, 2) != 0 || Clamp(3, 0, 2) != 2 || Clamp(1.5, 0, 2) != 1.5 {
		t.Error("clamp returned a value outside its bounds")
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]int{
		0.49:  0,
		0.5:   1,
		149.5: 150,
		-2.5:  -2,
		-2.51: -3,
	}
	for in, want := range cases {
		if got := RoundHalfUp(in); got != want {
			t.Errorf("RoundHalfUp(%v) = %d, want %d", in, got, want)
		}
	}
}
