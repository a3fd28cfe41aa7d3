package convo

import (
	"reflect"
	"testing"
)

func TestProblemSignals_Order(t *testing.T) {
	got := ProblemSignals("My job fails every few hours and I have to restart it manually")
	want := []string{SignalFailing, SignalManual}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
}

func TestProblemSignals_Dedup(t *testing.T) {
	got := ProblemSignals("it fails with an error and then crashes")
	if !reflect.DeepEqual(got, []string{SignalFailing}) {
		t.Fatalf("signals = %v, want single failing", got)
	}
}

func TestProblemSignals_CaseInsensitive(t *testing.T) {
	if !IsProblem("PLEASE AUTOMATE THIS") {
		t.Fatal("uppercase text should still match")
	}
}

func TestProblemSignals_JournalText(t *testing.T) {
	if got := ProblemSignals("Shipped the new settings page today, feeling good about it"); got != nil {
		t.Fatalf("expected no signals, got %v", got)
	}
}

func TestProblemSignals_Empty(t *testing.T) {
	if got := ProblemSignals("   "); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}
