package room

import (
	"net/url"
	"testing"

	"github.com/hitoshi/roomfinder/internal/model"
)

// TestParseFilter はクエリパラメータから検索条件が組み立てられることをテストする。
func TestParseFilter(t *testing.T) {
	q := url.Values{
		"location":   {"  koramangala "},
		"min_price":  {"5000"},
		"max_price":  {"15000"},
		"type":       {"1 BHK"},
		"preference": {"Any"},
		"owner_id":   {ownerID},
		"limit":      {"20"},
	}

	f, err := ParseFilter(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Location != "koramangala" {
		t.Errorf("Location = %q", f.Location)
	}
	if f.MinPrice == nil || *f.MinPrice != 5000 {
		t.Errorf("MinPrice = %v, want 5000", f.MinPrice)
	}
	if f.MaxPrice == nil || *f.MaxPrice != 15000 {
		t.Errorf("MaxPrice = %v, want 15000", f.MaxPrice)
	}
	if f.Type != "1 BHK" || f.Preference != model.AnyFilterValue {
		t.Errorf("Type/Preference = %q/%q", f.Type, f.Preference)
	}
	if f.OwnerID != ownerID || f.Limit != 20 {
		t.Errorf("OwnerID/Limit = %q/%d", f.OwnerID, f.Limit)
	}
}

// TestParseFilter_Empty は条件なしの場合ゼロ値になることをテストする。
func TestParseFilter_Empty(t *testing.T) {
	f, err := ParseFilter(url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.MinPrice != nil || f.MaxPrice != nil || f.Location != "" || f.Limit != 0 {
		t.Errorf("expected zero filter, got %+v", f)
	}
}

// TestParseFilter_Invalid は不正な値がINVALID_FILTERになることをテストする。
func TestParseFilter_Invalid(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
	}{
		{"min_price not number", url.Values{"min_price": {"cheap"}}},
		{"negative max_price", url.Values{"max_price": {"-1"}}},
		{"min greater than max", url.Values{"min_price": {"200"}, "max_price": {"100"}}},
		{"owner not uuid", url.Values{"owner_id": {"me"}}},
		{"limit zero", url.Values{"limit": {"0"}}},
		{"limit too large", url.Values{"limit": {"1000"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.q)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidFilter)
		})
	}
}
