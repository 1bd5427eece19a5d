package generator

import (
	"fmt"
	"strings"

	"resume-agent-go/internal/types"
)

// composeResume 组装针对岗位的简历草稿。
// 匹配分析存在时优先列出命中的技能，其余按原顺序排在后面。
func composeResume(profile *types.ResumeProfile, job *types.JobPosting, analysis *types.MatchAnalysis) string {
	var b strings.Builder

	if profile.Contact.Name != "" {
		b.WriteString(profile.Contact.Name + "\n")
	}
	contactLine := joinNonEmpty(" | ",
		profile.Contact.Email, profile.Contact.Phone, profile.Contact.Location,
		profile.Contact.LinkedIn, profile.Contact.GitHub)
	if contactLine != "" {
		b.WriteString(contactLine + "\n")
	}
	b.WriteString("\n")

	if profile.Summary != "" {
		b.WriteString("## Summary\n" + profile.Summary + "\n\n")
	}

	skills := prioritizeSkills(profile.Skills, analysis)
	if len(skills) > 0 {
		b.WriteString("## Skills\n" + strings.Join(skills, ", ") + "\n\n")
	}

	if len(profile.Experience) > 0 {
		b.WriteString("## Experience\n")
		for _, exp := range profile.Experience {
			head := exp.Title
			if exp.Company != "" {
				head += " - " + exp.Company
			}
			if exp.Dates != "" {
				head += " (" + exp.Dates + ")"
			}
			b.WriteString("### " + head + "\n")
			for _, bullet := range exp.Bullets {
				b.WriteString("- " + bullet + "\n")
			}
		}
		b.WriteString("\n")
	}

	if len(profile.Education) > 0 {
		b.WriteString("## Education\n")
		for _, edu := range profile.Education {
			line := edu.Degree
			if edu.Institution != "" {
				line += ", " + edu.Institution
			}
			if edu.Dates != "" {
				line += " (" + edu.Dates + ")"
			}
			b.WriteString("- " + line + "\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// composeCoverLetter 组装求职信草稿
func composeCoverLetter(profile *types.ResumeProfile, job *types.JobPosting, analysis *types.MatchAnalysis) string {
	var b strings.Builder

	company := job.Company
	if company == "" {
		company = "your company"
	}

	b.WriteString("Dear Hiring Manager,\n\n")
	b.WriteString(fmt.Sprintf("I am writing to express my interest in the %s position at %s.\n\n", job.Title, company))

	if profile.Summary != "" {
		b.WriteString(profile.Summary + "\n\n")
	}

	if analysis != nil && len(analysis.MatchedSkills) > 0 {
		b.WriteString(fmt.Sprintf(
			"My background aligns closely with your requirements, with direct experience in %s.\n\n",
			joinWithAnd(analysis.MatchedSkills)))
	} else if len(profile.Skills) > 0 {
		highlight := profile.Skills
		if len(highlight) > 5 {
			highlight = highlight[:5]
		}
		b.WriteString(fmt.Sprintf(
			"I bring hands-on experience with %s.\n\n", joinWithAnd(highlight)))
	}

	b.WriteString(fmt.Sprintf(
		"I would welcome the opportunity to discuss how my experience can contribute to %s. Thank you for your consideration.\n\n", company))

	signature := "Sincerely"
	if profile.Contact.Name != "" {
		signature += ",\n" + profile.Contact.Name
	}
	b.WriteString(signature)

	return b.String()
}

// prioritizeSkills 把分析命中的技能排到前面，保持其余技能的原始顺序
func prioritizeSkills(skills []string, analysis *types.MatchAnalysis) []string {
	if analysis == nil || len(analysis.MatchedSkills) == 0 {
		return skills
	}
	matched := make(map[string]bool, len(analysis.MatchedSkills))
	for _, s := range analysis.MatchedSkills {
		matched[strings.ToLower(s)] = true
	}
	var front, rest []string
	for _, s := range skills {
		if matched[strings.ToLower(strings.TrimSpace(s))] {
			front = append(front, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(front, rest...)
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func joinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
