package validation

import "testing"

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

type timeQueryLike struct {
	Types []string `validate:"required,min=1"`
	Limit int      `validate:"omitempty,min=1,max=10000"`
	Order string   `validate:"omitempty,oneof=t_start_asc t_start_desc"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := timeQueryLike{Types: []string{"location.gps"}, Limit: 500, Order: "t_start_asc"}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	req := timeQueryLike{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for missing Types")
	}
	if len(err.Fields()) != 1 {
		t.Fatalf("expected 1 field error, got %d", len(err.Fields()))
	}
	if err.Fields()[0].Field != "Types" {
		t.Errorf("expected failure on Types, got %s", err.Fields()[0].Field)
	}
}

func TestValidateStruct_OneOfAndMax(t *testing.T) {
	req := timeQueryLike{Types: []string{"music"}, Limit: 20000, Order: "sideways"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Fields()) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %s", len(err.Fields()), err.Error())
	}
}

func TestErrors_Detail(t *testing.T) {
	req := timeQueryLike{}
	err := ValidateStruct(&req)
	if err.Detail() == "" {
		t.Error("Detail() should return a non-empty message")
	}
}
