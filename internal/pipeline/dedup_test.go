package pipeline

import (
	"reflect"
	"testing"
)

func TestPartition_KeepsOrderAndDropsStored(t *testing.T) {
	t.Parallel()

	candidates := candidatesWithIDs("a", "b", "c", "d", "e")
	stored := map[string]struct{}{"b": {}, "d": {}, "zz": {}}

	got := Partition(candidates, stored)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.RedditID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "c", "e"}) {
		t.Fatalf("unexpected partition: %v", ids)
	}
}

func TestPartition_CollapsesRepeatedCandidates(t *testing.T) {
	t.Parallel()

	candidates := candidatesWithIDs("a", "b", "a", "c", "b")
	got := Partition(candidates, nil)
	if len(got) != 3 || got[0].RedditID != "a" || got[1].RedditID != "b" || got[2].RedditID != "c" {
		t.Fatalf("expected first occurrences only, got %+v", got)
	}
}

func TestPartition_EmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Partition(nil, map[string]struct{}{"a": {}}); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	all := candidatesWithIDs("a", "b")
	if got := Partition(all, map[string]struct{}{}); len(got) != 2 {
		t.Fatalf("expected all candidates, got %+v", got)
	}
}

func TestDistinctIDs(t *testing.T) {
	t.Parallel()

	got := distinctIDs(candidatesWithIDs("x", "y", "x"))
	if !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("unexpected ids: %v", got)
	}
}
