package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tothsteve/itc-admin/internal/model"
)

// ConfidenceThreshold is the minimum normalized score a rule must reach for
// a classification to be accepted. A score of exactly 0.5 is accepted.
const ConfidenceThreshold = 0.5

// Scoring weights per matching dimension.
const (
	emailWeight    = 2.0
	subjectWeight  = 1.0
	bodyWeight     = 1.0
	pdfCountWeight = 1.0
)

// Classify scores every rule against the message signals and returns the
// best classification, or nil when no rule reaches the confidence
// threshold. Ties resolve to the rule declared earliest, so the result is
// deterministic for an unchanged rule table.
func (snap *Snapshot) Classify(sender, subject, body string, pdfCount int) *model.Classification {
	sender = strings.ToLower(sender)
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)

	var (
		best        *model.Rule
		bestScore   float64
		bestMatched []string
	)

	for _, rule := range snap.ordered {
		score, matched := matchScore(rule, sender, subject, body, pdfCount)
		if score > bestScore {
			best = rule
			bestScore = score
			bestMatched = matched
		}
	}

	if best == nil || bestScore < ConfidenceThreshold {
		slog.Debug("no rule reached confidence threshold", "best_score", bestScore)
		return nil
	}

	c := &model.Classification{
		PartnerName:     best.Name,
		InvoiceType:     best.EffectiveInvoiceType(),
		PaymentType:     best.EffectivePaymentType(),
		FolderPath:      snap.FolderPath(best.RoutingType()),
		Confidence:      bestScore,
		MatchedPatterns: bestMatched,
	}

	slog.Debug("classified message",
		"partner", c.PartnerName,
		"invoice_type", c.InvoiceType,
		"confidence", c.Confidence)
	return c
}

// matchScore computes the weighted match score of one rule, normalized to
// [0, 1] over the dimensions the rule declares, plus the audit trail of
// patterns that fired. Within a dimension the first matching pattern wins
// with no extra credit for further matches.
func matchScore(rule *model.Rule, sender, subject, body string, pdfCount int) (float64, []string) {
	var score, total float64
	var matched []string

	if len(rule.EmailPatterns) > 0 {
		total += emailWeight
		for _, pattern := range rule.EmailPatterns {
			if strings.Contains(sender, strings.ToLower(pattern)) {
				score += emailWeight
				matched = append(matched, "email: "+pattern)
				break
			}
		}
	}

	if len(rule.SubjectPatterns) > 0 {
		total += subjectWeight
		for _, pattern := range rule.SubjectPatterns {
			if strings.Contains(subject, strings.ToLower(pattern)) {
				score += subjectWeight
				matched = append(matched, "subject: "+pattern)
				break
			}
		}
	}

	if len(rule.BodyPatterns) > 0 {
		total += bodyWeight
		for _, pattern := range rule.BodyPatterns {
			if strings.Contains(body, strings.ToLower(pattern)) {
				score += bodyWeight
				matched = append(matched, "body: "+pattern)
				break
			}
		}
	}

	if rule.PDFCountRequired > 0 {
		total += pdfCountWeight
		if pdfCount == rule.PDFCountRequired {
			score += pdfCountWeight
			matched = append(matched, fmt.Sprintf("pdf_count: %d", pdfCount))
		}
	}

	if total == 0 {
		return 0, nil
	}
	return score / total, matched
}
