package upstream

import (
	"encoding/json"
	"testing"
)

func mustParse(t *testing.T, raw string) any {
	t.Helper()
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("bad fixture %q: %v", raw, err)
	}
	return parsed
}

func TestExtractRateFieldCandidates(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"funding string", `{"lastFundingRate":"0.0001"}`, "0.0001"},
		{"funding number", `{"fundingRate":0.0002}`, "0.0002"},
		{"open interest", `{"openInterest":"12345.678"}`, "12345.678"},
		{"generic value", `{"value":42}`, "42"},
		{"data wrapper", `{"data":{"rate":"0.01"}}`, "0.01"},
		{"array shape", `[{"fundingRate":"0.0003"}]`, "0.0003"},
		{"candidate order wins", `{"lastFundingRate":"0.1","rate":"0.9"}`, "0.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rate, ok := ExtractRate(mustParse(t, tc.body))
			if !ok {
				t.Fatalf("extraction failed for %s", tc.body)
			}
			if rate.String() != tc.want {
				t.Fatalf("rate = %s, want %s", rate.String(), tc.want)
			}
		})
	}
}

func TestExtractRateNothingNumeric(t *testing.T) {
	for _, body := range []string{`{"symbol":"BTCUSDT"}`, `{"value":"not-a-number"}`, `[]`, `"plain"`} {
		if _, ok := ExtractRate(mustParse(t, body)); ok {
			t.Fatalf("extraction should fail for %s", body)
		}
	}
}

func TestAppError(t *testing.T) {
	errorBodies := []string{
		`{"success":false}`,
		`{"code":-1003,"msg":"rate limited"}`,
		`{"code":"100500"}`,
		`{"error":"maintenance"}`,
		`{"error":{"reason":"down"}}`,
	}
	for _, body := range errorBodies {
		if !AppError(mustParse(t, body)) {
			t.Fatalf("%s should classify as application error", body)
		}
	}

	okBodies := []string{
		`{"success":true}`,
		`{"code":0,"data":{}}`,
		`{"lastFundingRate":"0.0001"}`,
		`[1,2,3]`,
	}
	for _, body := range okBodies {
		if AppError(mustParse(t, body)) {
			t.Fatalf("%s should not classify as application error", body)
		}
	}
}
