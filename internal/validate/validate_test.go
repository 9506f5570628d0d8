/*-------------------------------------------------------------------------
 *
 * LATS Admin - Record Validation Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package validate

import (
	"errors"
	"strings"
	"testing"

	"lats-admin/internal/records"
)

func TestValidate(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name        string
		contact     records.Contact
		wantReasons int
	}{
		{"valid", records.Contact{Phone: "+255712345678", Name: "Mary A."}, 0},
		{"valid with email", records.Contact{Phone: "+255712345678", Name: "Mary", Email: "m@x.tz"}, 0},
		{"empty phone", records.Contact{Name: "Mary"}, 1},
		{"short phone", records.Contact{Phone: "+1234", Name: "Mary"}, 1},
		{"not canonical", records.Contact{Phone: "0712345678", Name: "Mary"}, 1},
		{"too long", records.Contact{Phone: "+1234567890123456", Name: "Mary"}, 1},
		{"empty name", records.Contact{Phone: "+255712345678", Name: "  "}, 1},
		{"everything wrong", records.Contact{Phone: "+12", Email: "nope"}, 3},
		{"home number missing one digit", records.Contact{Phone: "+25571234567", Name: "Mary"}, 1},
		{"home number missing two digits", records.Contact{Phone: "+2557123456", Name: "Mary"}, 1},
		{"home number one digit too long", records.Contact{Phone: "+2557123456789", Name: "Mary"}, 1},
		{"foreign number", records.Contact{Phone: "+447911123456", Name: "Mary"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.contact, opts)
			if tt.wantReasons == 0 {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}

			var invalid *InvalidError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected *InvalidError, got %v", err)
			}
			if !errors.Is(err, ErrRecordInvalid) {
				t.Error("InvalidError should unwrap to ErrRecordInvalid")
			}
			if len(invalid.Reasons) != tt.wantReasons {
				t.Errorf("got %d reasons %v, want %d", len(invalid.Reasons), invalid.Reasons, tt.wantReasons)
			}
		})
	}
}

func TestValidateCountsSubscriberDigits(t *testing.T) {
	// without a fixed local length the minimum applies after the country code
	opts := Options{MinSubscriberDigits: 9, CountryCode: "255"}

	if err := Validate(records.Contact{Phone: "+255712345678", Name: "Mary"}, opts); err != nil {
		t.Errorf("9 subscriber digits rejected: %v", err)
	}
	err := Validate(records.Contact{Phone: "+25571234567", Name: "Mary"}, opts)
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("8 subscriber digits accepted: %v", err)
	}
	if !strings.Contains(invalid.Reasons[0], "8 subscriber digits") {
		t.Errorf("unexpected reason %q", invalid.Reasons[0])
	}
}
