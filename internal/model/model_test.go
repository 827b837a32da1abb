package model

import (
	"slices"
	"testing"
)

func TestOrderedQuestionKeysNumeric(t *testing.T) {
	questions := map[string]string{
		"question10": "J",
		"question2":  "B",
		"question1":  "A",
	}
	got := OrderedQuestionKeys(questions)
	want := []string{"question1", "question2", "question10"}
	if !slices.Equal(got, want) {
		t.Errorf("OrderedQuestionKeys = %v, want %v", got, want)
	}
}

func TestOrderedQuestionKeysMixed(t *testing.T) {
	questions := map[string]string{
		"intro":     "x",
		"question2": "b",
		"question1": "a",
		"notes":     "y",
	}
	got := OrderedQuestionKeys(questions)
	// Numbered keys first by ordinal, the rest after in plain string order.
	want := []string{"question1", "question2", "intro", "notes"}
	if !slices.Equal(got, want) {
		t.Errorf("OrderedQuestionKeys = %v, want %v", got, want)
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Thema 2", "Thema 10", true},
		{"Thema 10", "Thema 2", false},
		{"a2b10", "a2b9", false},
		{"a2b9", "a2b10", true},
		{"abc", "abd", true},
		{"abc", "abc", false},
		{"abc", "abcd", true},
		{"1", "a", true},
	}
	for _, tt := range tests {
		if got := NaturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("NaturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUnitDataEmpty(t *testing.T) {
	var nilUnit *UnitData
	if !nilUnit.Empty() {
		t.Error("nil unit should be empty")
	}
	if !(&UnitData{}).Empty() {
		t.Error("zero unit should be empty")
	}
	if (&UnitData{Answer: "<p>x</p>"}).Empty() {
		t.Error("unit with answer should not be empty")
	}
	if (&UnitData{Attachments: []Attachment{{FileName: "f"}}}).Empty() {
		t.Error("unit with attachment should not be empty")
	}
}

func TestDataStoreUnitCreatesPath(t *testing.T) {
	ds := DataStore{}
	u := ds.Unit("a1", "s1")
	u.Answer = "<p>x</p>"
	if ds["a1"]["s1"].Answer != "<p>x</p>" {
		t.Error("Unit did not create a live entry")
	}
	if ds.Unit("a1", "s1") != u {
		t.Error("Unit did not return the existing entry")
	}
}

func TestAttachmentExportCopy(t *testing.T) {
	att := Attachment{ID: 7, AssignmentID: "a", SubID: "s", FileName: "f.png", FileType: "image/png", Data: "data:..."}
	got := att.ExportCopy()
	if got.ID != 0 || got.AssignmentID != "" || got.SubID != "" {
		t.Errorf("ExportCopy kept scoping fields: %+v", got)
	}
	if got.FileName != att.FileName || got.FileType != att.FileType || got.Data != att.Data {
		t.Errorf("ExportCopy lost content fields: %+v", got)
	}
}
