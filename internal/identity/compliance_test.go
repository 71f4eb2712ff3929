package identity

import "testing"

func findViolation(violations []Violation, rule string) (Violation, bool) {
	for _, v := range violations {
		if v.Rule == rule {
			return v, true
		}
	}
	return Violation{}, false
}

func TestScanViolationsFlagsSolicitation(t *testing.T) {
	text := "리딩방에 입장하시면 종목을 찍어드립니다. 투자의 책임은 본인에게 있습니다."
	violations := ScanViolations(text)

	v, ok := findViolation(violations, RuleOneOnOneAdvice)
	if !ok {
		t.Fatalf("expected one_on_one_advice violation, got %+v", violations)
	}
	if v.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", v.Severity)
	}
	if v.Matched != "리딩방" {
		t.Fatalf("expected matched keyword, got %q", v.Matched)
	}
}

func TestScanViolationsFlagsGuaranteedReturns(t *testing.T) {
	text := "저희는 원금 보장에 수익 보장까지 해드립니다. 투자 판단은 본인 몫입니다."
	violations := ScanViolations(text)

	v, ok := findViolation(violations, RuleGuaranteedReturns)
	if !ok {
		t.Fatalf("expected guaranteed_returns violation, got %+v", violations)
	}
	if v.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", v.Severity)
	}
}

func TestScanViolationsOneViolationPerRule(t *testing.T) {
	// Two keywords of the same rule must yield a single violation.
	text := "리딩방도 있고 단톡방도 운영합니다. 투자의 책임은 본인에게 있습니다."
	violations := ScanViolations(text)

	count := 0
	for _, v := range violations {
		if v.Rule == RuleOneOnOneAdvice {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one violation per rule, got %d", count)
	}
}

func TestScanViolationsMissingDisclosure(t *testing.T) {
	violations := ScanViolations("이 종목은 무조건 오릅니다.")

	if _, ok := findViolation(violations, RuleMissingDisclosure); !ok {
		t.Fatalf("expected missing_disclosure violation, got %+v", violations)
	}
	if v, ok := findViolation(violations, RuleAbsoluteCertainty); !ok || v.Severity != SeverityMedium {
		t.Fatalf("expected medium-severity absolute_certainty violation, got %+v", violations)
	}
}

func TestScanViolationsDisclosurePresent(t *testing.T) {
	violations := ScanViolations("원금 손실이 발생할 수 있으니 투자 판단은 본인 책임입니다.")

	if _, ok := findViolation(violations, RuleMissingDisclosure); ok {
		t.Fatalf("expected no missing_disclosure with disclosure present, got %+v", violations)
	}
}

func TestScanViolationsCleanTranscript(t *testing.T) {
	violations := ScanViolations("오늘은 반도체 업황을 살펴봅니다. 투자의 책임은 투자자 본인에게 있습니다.")
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %+v", violations)
	}
}
