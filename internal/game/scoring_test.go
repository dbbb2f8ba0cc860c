package game

import "testing"

func thresholds(ms []Milestone) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = m.Threshold
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildMilestones(t *testing.T) {
	tests := []struct {
		name string
		goal int
		want []int
	}{
		{"halfway inserted", 25, []int{5, 10, 13, 20}},
		{"halfway already present", 20, []int{5, 10, 20}},
		{"odd goal rounds up", 9, []int{5, 10, 20}},
		{"halfway above fixed list", 60, []int{5, 10, 20, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := thresholds(BuildMilestones(DefaultMilestones, tt.goal))
			if !equalInts(got, tt.want) {
				t.Errorf("BuildMilestones(goal=%d) = %v, want %v", tt.goal, got, tt.want)
			}
		})
	}
}

func TestBuildMilestonesDedup(t *testing.T) {
	base := []Milestone{{20, "b"}, {5, "a"}, {5, "dup"}}
	got := BuildMilestones(base, 0)

	if !equalInts(thresholds(got), []int{5, 20}) {
		t.Fatalf("got %v", thresholds(got))
	}
	if got[0].Message != "a" {
		t.Errorf("Expected first entry kept, got %q", got[0].Message)
	}
}

func TestApplyDeltaJumpFiresInOrder(t *testing.T) {
	board := NewScoreboard(BuildMilestones(DefaultMilestones, 25))
	board.Begin()

	if fired := board.ApplyDelta(4); len(fired) != 0 {
		t.Fatalf("no milestone expected at 4, got %v", thresholds(fired))
	}

	fired := board.ApplyDelta(11)
	if !equalInts(thresholds(fired), []int{5, 10, 13}) {
		t.Errorf("4 -> 15 fired %v, want [5 10 13]", thresholds(fired))
	}

	board.ApplyDelta(-3)
	if fired := board.ApplyDelta(3); len(fired) != 0 {
		t.Errorf("milestones must fire once, got %v", thresholds(fired))
	}
}

func TestScoreFloorsAtZero(t *testing.T) {
	board := NewScoreboard(nil)
	board.Begin()

	board.ApplyDelta(-1)
	if board.Score() != 0 {
		t.Errorf("score went negative: %d", board.Score())
	}

	board.ApplyDelta(2)
	board.ApplyDelta(-5)
	if board.Score() != 0 {
		t.Errorf("Expected 0, got %d", board.Score())
	}
}

func TestMilestonesOnlyWhileRunning(t *testing.T) {
	board := NewScoreboard(BuildMilestones(DefaultMilestones, 20))
	if fired := board.ApplyDelta(10); len(fired) != 0 {
		t.Errorf("idle board fired %v", thresholds(fired))
	}

	board.Begin()
	if board.Score() != 0 || board.State() != StateRunning {
		t.Fatalf("Begin should reset to running/0, got %v/%d", board.State(), board.Score())
	}
	board.ApplyDelta(6)

	if final := board.Finish(); final != 6 {
		t.Errorf("Finish = %d, want 6", final)
	}
	if board.Score() != 0 || board.State() != StateEnded {
		t.Errorf("Expected ended/0, got %v/%d", board.State(), board.Score())
	}
	if fired := board.ApplyDelta(20); len(fired) != 0 {
		t.Errorf("ended board fired %v", thresholds(fired))
	}
}
