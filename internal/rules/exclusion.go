package rules

import (
	"fmt"
	"strings"
)

// IsExcluded screens a message against the exclusion rules before
// classification. Rules are evaluated in declaration order and the first
// match wins. A rule with both email and subject patterns requires both to
// match; a rule with only subject patterns matches on subject alone.
func (snap *Snapshot) IsExcluded(sender, subject string) (bool, string) {
	sender = strings.ToLower(sender)
	subject = strings.ToLower(subject)

	for i := range snap.exclusions {
		rule := &snap.exclusions[i]

		for _, pattern := range rule.EmailPatterns {
			if !strings.Contains(sender, strings.ToLower(pattern)) {
				continue
			}
			if len(rule.SubjectPatterns) == 0 {
				return true, fmt.Sprintf("Excluded by rule: %s (email: %s)", rule.Name, pattern)
			}
			for _, subjectPattern := range rule.SubjectPatterns {
				if strings.Contains(subject, strings.ToLower(subjectPattern)) {
					return true, fmt.Sprintf("Excluded by rule: %s (email: %s, subject: %s)", rule.Name, pattern, subjectPattern)
				}
			}
		}

		if len(rule.EmailPatterns) == 0 {
			for _, subjectPattern := range rule.SubjectPatterns {
				if strings.Contains(subject, strings.ToLower(subjectPattern)) {
					return true, fmt.Sprintf("Excluded by rule: %s (subject: %s)", rule.Name, subjectPattern)
				}
			}
		}
	}

	return false, ""
}
