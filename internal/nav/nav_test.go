package nav

import (
	"testing"
	"time"
)

func TestBufferAppend_KeepsSequencesAligned(t *testing.T) {
	var b Buffer
	b.Append(0, &Vec3{1, 2, 3}, &Quat{W: 1})
	b.Append(10*time.Millisecond, nil, nil)

	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("len=%d want 2", b.Len())
	}
	if b.Acc[1][0] != nil || b.Quat[1][3] != nil {
		t.Fatalf("expected missing axes for nil reading")
	}
	if got := *b.Acc[0][2]; got != 3 {
		t.Fatalf("acc z=%v want 3", got)
	}
	if b.Time[1] != 0.01 {
		t.Fatalf("time=%v want 0.01", b.Time[1])
	}
}

func TestBufferValidate_Mismatch(t *testing.T) {
	b := Buffer{Acc: make([]Axes3, 2), Quat: make([]Axes4, 1), Time: make([]float64, 2)}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAxesOf_CopiesValues(t *testing.T) {
	v := &Vec3{1, 2, 3}
	a := AxesOf(v)
	v.X = 9
	if *a[0] != 1 {
		t.Fatalf("axes alias the source vector")
	}
}

func TestSampleComplete(t *testing.T) {
	s := Sample{Acc: &Vec3{}, Gyro: &Vec3{}}
	if s.Complete() {
		t.Fatalf("sample without quaternion reported complete")
	}
	q := QuatWXYZ(1, 0, 0, 0)
	s.Quat = &q
	if !s.Complete() {
		t.Fatalf("expected complete")
	}
}
