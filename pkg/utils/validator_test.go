package utils

import "testing"

type holdPayload struct {
	HolderToken string   `json:"holder_token" validate:"required"`
	SeatIDs     []string `json:"seat_ids" validate:"required,min=1,max=2,dive,required"`
	Deck        string   `json:"deck" validate:"omitempty,oneof=lower upper"`
}

func TestValidateStruct(t *testing.T) {
	if errs := ValidateStruct(holdPayload{HolderToken: "t", SeatIDs: []string{"L1"}}); errs != nil {
		t.Fatalf("expected valid payload, got %v", errs)
	}

	errs := ValidateStruct(holdPayload{SeatIDs: []string{"L1", "", "L3"}, Deck: "middle"})
	want := map[string]string{
		"holder_token": "This field is required",
		"seat_ids":     "At most 2 items allowed",
		"deck":         "Must be one of: lower, upper",
	}
	for field, msg := range want {
		if errs[field] != msg {
			t.Errorf("field %s: expected %q, got %q", field, msg, errs[field])
		}
	}
}

func TestFormatValidationErrors(t *testing.T) {
	got := FormatValidationErrors(map[string]string{
		"seat_ids":     "This field is required",
		"holder_token": "This field is required",
	})
	want := "holder_token: This field is required; seat_ids: This field is required"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
