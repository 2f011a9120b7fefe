package alert

import (
	"reflect"
	"sync"
	"testing"
)

func TestTracker_EmitsOnlyOnEdges(t *testing.T) {
	tr := NewTracker()
	thickness := []float64{50, 50, 85, 85, 40, 90}

	var fired []int
	var levels []Level
	for i, v := range thickness {
		if got, ok := tr.Evaluate("run-1", v, 80); ok {
			fired = append(fired, i)
			levels = append(levels, got.Level)
		}
	}

	// Index 0 fires because the previous level starts unknown.
	wantFired := []int{0, 2, 4, 5}
	wantLevels := []Level{Below, Above, Below, Above}
	if !reflect.DeepEqual(fired, wantFired) {
		t.Fatalf("transitions at %v, want %v", fired, wantFired)
	}
	if !reflect.DeepEqual(levels, wantLevels) {
		t.Fatalf("levels = %v, want %v", levels, wantLevels)
	}
}

func TestTracker_ReplayedSequenceHasNoConsecutiveDuplicates(t *testing.T) {
	tr := NewTracker()
	seq := []float64{10, 90, 90, 10, 10}

	var emitted []Level
	for pass := 0; pass < 2; pass++ {
		for _, v := range seq {
			if got, ok := tr.Evaluate("run", v, 80); ok {
				emitted = append(emitted, got.Level)
			}
		}
	}
	for i := 1; i < len(emitted); i++ {
		if emitted[i] == emitted[i-1] {
			t.Fatalf("consecutive duplicate level at %d: %v", i, emitted)
		}
	}
}

func TestTracker_ThresholdIsInclusive(t *testing.T) {
	if got := LevelFor(80, 80); got != Above {
		t.Fatalf("LevelFor(80, 80) = %v, want Above", got)
	}
	if got := LevelFor(79.999, 80); got != Below {
		t.Fatalf("LevelFor(79.999, 80) = %v, want Below", got)
	}
}

func TestTracker_ResetReEmitsFirstLevel(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Evaluate("run", 90, 80); !ok {
		t.Fatal("first evaluation did not emit")
	}
	if _, ok := tr.Evaluate("run", 95, 80); ok {
		t.Fatal("same level emitted twice")
	}

	tr.Reset("run")
	if _, ok := tr.Current("run"); ok {
		t.Fatal("Current reports a level after Reset")
	}
	got, ok := tr.Evaluate("run", 95, 80)
	if !ok || got.Level != Above || got.RunID != "run" {
		t.Fatalf("Evaluate after Reset = %+v, %v; want Above transition", got, ok)
	}
}

func TestTracker_RunsAreIndependent(t *testing.T) {
	tr := NewTracker()
	tr.Evaluate("a", 90, 80)
	if _, ok := tr.Evaluate("b", 90, 80); !ok {
		t.Fatal("run b should emit its own first transition")
	}
	tr.Reset("b")
	if level, ok := tr.Current("a"); !ok || level != Above {
		t.Fatalf("run a level = %v, %v; want Above, true", level, ok)
	}
}

func TestTracker_ZeroValueUsable(t *testing.T) {
	var tr Tracker
	tr.Reset("x")
	if _, ok := tr.Evaluate("x", 1, 2); !ok {
		t.Fatal("zero-value tracker did not emit")
	}
}

func TestTracker_ConcurrentEvaluate(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Evaluate("run", float64((i+j)%2*100), 50)
			}
		}(i)
	}
	wg.Wait()
	if _, ok := tr.Current("run"); !ok {
		t.Fatal("no level recorded")
	}
}
