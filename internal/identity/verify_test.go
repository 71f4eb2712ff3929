package identity

import "testing"

func TestVerifyChannelIDBeatsConflictingName(t *testing.T) {
	// The name would fuzzy-match a quasi-advisor, but the exact channel id wins.
	got := Verify("주식공장", "", "UCq5H-cwWLtLDvSGM_M2oXOw")
	if got.MatchedBy != MatchedByChannelID {
		t.Fatalf("expected channel_id match, got %s", got.MatchedBy)
	}
	if got.Organization != "삼성증권" {
		t.Fatalf("expected 삼성증권, got %s", got.Organization)
	}
	if got.Category != CategoryInstitutional || got.RiskLevel != RiskSafe {
		t.Fatalf("expected institutional/safe, got %s/%s", got.Category, got.RiskLevel)
	}
}

func TestVerifyHandleMatchIsCaseInsensitive(t *testing.T) {
	got := Verify("아무 이름", "@SamsungPOP", "")
	if !got.Verified || got.MatchedBy != MatchedByHandle {
		t.Fatalf("expected handle match, got %+v", got)
	}
	if got.Organization != "삼성증권" {
		t.Fatalf("expected 삼성증권, got %s", got.Organization)
	}
}

func TestVerifyFuzzyNameMatch(t *testing.T) {
	cases := []struct {
		name         string
		channelName  string
		organization string
		category     string
		risk         string
	}{
		{"decorated institutional", "미래에셋증권 공식 채널", "미래에셋증권", CategoryInstitutional, RiskSafe},
		{"corporate prefix stripped", "(주)키움증권 TV", "키움증권", CategoryInstitutional, RiskSafe},
		{"spaces ignored", "한국 투자 증권", "한국투자증권", CategoryInstitutional, RiskSafe},
		{"quasi advisor by name", "주식공장 공식채널", "주식공장", CategoryQuasiAdvisor, RiskCaution},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Verify(tc.channelName, "", "")
			if !got.Verified {
				t.Fatalf("expected verified uploader, got %+v", got)
			}
			if got.Organization != tc.organization {
				t.Fatalf("expected %s, got %s", tc.organization, got.Organization)
			}
			if got.Category != tc.category || got.RiskLevel != tc.risk {
				t.Fatalf("expected %s/%s, got %s/%s", tc.category, tc.risk, got.Category, got.RiskLevel)
			}
		})
	}
}

func TestVerifyUnknownUploaderIsHighRisk(t *testing.T) {
	got := Verify("무명 투자 유튜버", "@nobody", "UC-unknown")
	if got.Verified {
		t.Fatalf("expected unverified uploader")
	}
	if got.Category != CategoryUnknown || got.RiskLevel != RiskHigh {
		t.Fatalf("expected unknown/high, got %s/%s", got.Category, got.RiskLevel)
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	got := Verify("", "", "")
	if got.Verified {
		t.Fatalf("expected unverified for empty inputs")
	}
	if got.RiskLevel != RiskHigh {
		t.Fatalf("expected high risk, got %s", got.RiskLevel)
	}
}
