package explain

import "testing"

func TestDeriveReasonPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		want    ReasonType
	}{
		{
			"impersonation wins over everything",
			Input{
				Signals: []string{"Brand impersonation", "Urgency + credential ask", "Suspicious URL structure"},
				Score:   0.9,
			},
			ReasonBankImpersonation,
		},
		{
			"credential ask without impersonation",
			Input{Signals: []string{"Urgency + credential ask"}, Score: 0.7},
			ReasonCredentialRequest,
		},
		{
			"suspicious link only",
			Input{Signals: []string{"Suspicious URL structure"}, Score: 0.5},
			ReasonSuspiciousLink,
		},
		{
			"reward scam from text",
			Input{Text: "congratulations you are the lottery winner", Score: 0.6},
			ReasonRewardScam,
		},
		{
			"account threat from text",
			Input{Text: "your account will be blocked tonight", Score: 0.5},
			ReasonAccountThreat,
		},
		{
			"no signals means safe",
			Input{Text: "see you at the match tomorrow", Score: 0.1},
			ReasonSafe,
		},
		{
			"low score keeps reward text safe",
			Input{Text: "we won the cricket match", Score: 0.1},
			ReasonSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.in)
			if got.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.want)
			}
		})
	}
}

func TestDeriveTacticsAndTechnical(t *testing.T) {
	got := Derive(Input{
		RiskLevel: "high",
		Score:     0.85,
		Signals: []string{
			"Brand impersonation",
			"Urgency + credential ask",
			"Suspicious URL structure",
		},
	})

	wantTactics := map[string]bool{"Urgency": true, "Authority": true, "Fear": true}
	for _, tac := range got.Tactics {
		if !wantTactics[tac] {
			t.Errorf("unexpected tactic %q", tac)
		}
		delete(wantTactics, tac)
	}
	for tac := range wantTactics {
		t.Errorf("missing tactic %q", tac)
	}

	if len(got.Technical) != 2 {
		t.Errorf("technical = %v, want Suspicious URL + Credential Harvesting Pattern", got.Technical)
	}
}

func TestConfidenceBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "High"},
		{0.80, "High"},
		{0.60, "Medium"},
		{0.45, "Medium"},
		{0.30, "Low"},
		{0.0, "Low"},
	}
	for _, tt := range tests {
		if got := Derive(Input{Score: tt.score}); got.Confidence != tt.want {
			t.Errorf("confidence(%.2f) = %q, want %q", tt.score, got.Confidence, tt.want)
		}
	}
}

func TestDeriveCarriesRiskLevel(t *testing.T) {
	got := Derive(Input{RiskLevel: "critical", Score: 0.95, Signals: []string{"Brand impersonation"}})
	if got.RiskLevel != "critical" {
		t.Errorf("RiskLevel = %q, want critical", got.RiskLevel)
	}
}
