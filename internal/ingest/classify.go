package ingest

import (
	"regexp"
	"strings"

	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// categoryRules map subject keywords to ticket categories. Order matters:
// the first rule with a matching keyword wins.
var categoryRules = []struct {
	category models.TicketCategory
	keywords []string
}{
	{models.CategoryBooking, []string{"reserva", "reservación", "booking", "book", "vuelo"}},
	{models.CategoryCancellation, []string{"cancelar", "cancelación", "cancel", "anular"}},
	{models.CategoryRefund, []string{"reembolso", "refund", "devolución", "dinero"}},
	{models.CategoryBaggage, []string{"equipaje", "baggage", "maleta", "perdido"}},
	{models.CategoryFlightChange, []string{"cambio", "change", "modificar", "fecha"}},
	{models.CategoryComplaint, []string{"reclamo", "complaint", "problema", "queja", "malo"}},
}

var (
	urgentKeywords = []string{"urgente", "urgent", "emergency", "emergencia", "inmediato"}
	highKeywords   = []string{"importante", "important", "pronto", "soon", "alta"}
)

// reservationPatterns are tried in order against subject plus body; the
// first capture wins and is uppercased.
var reservationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:reserva|reservation|booking|vuelo|flight)[:\s#]*([A-Z0-9]{5,8})`),
	regexp.MustCompile(`(?i)(?:ref|reference)[:\s#]*([A-Z0-9]{5,8})`),
	regexp.MustCompile(`\b([A-Z]{2,3}[0-9]{3,6})\b`),
	regexp.MustCompile(`\b([0-9]{3}[A-Z]{2,3})\b`),
}

// DetectCategory classifies a ticket from subject keywords, defaulting to
// general.
func DetectCategory(subject string) models.TicketCategory {
	subject = strings.ToLower(subject)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(subject, keyword) {
				return rule.category
			}
		}
	}
	return models.CategoryGeneral
}

// DetectPriority derives priority from subject and body keywords. Urgent
// keywords beat high keywords beat the normal default.
func DetectPriority(subject, body string) models.TicketPriority {
	content := strings.ToLower(subject + " " + body)
	for _, keyword := range urgentKeywords {
		if strings.Contains(content, keyword) {
			return models.PriorityUrgent
		}
	}
	for _, keyword := range highKeywords {
		if strings.Contains(content, keyword) {
			return models.PriorityHigh
		}
	}
	return models.PriorityNormal
}

// ExtractReservationNumber pulls the first reservation-code looking token
// out of subject and body, uppercased. Empty when nothing matches.
func ExtractReservationNumber(subject, body string) string {
	content := subject + " " + body
	for _, pattern := range reservationPatterns {
		if m := pattern.FindStringSubmatch(content); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

var subjectPrefixPattern = regexp.MustCompile(`(?i)^(Re|Fwd|Fw):\s*`)

// CleanSubject strips reply/forward prefixes, repeatedly so chains like
// "Re: Fwd: x" reduce to the bare subject.
func CleanSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	for {
		stripped := subjectPrefixPattern.ReplaceAllString(subject, "")
		if stripped == subject {
			break
		}
		subject = strings.TrimSpace(stripped)
	}
	if subject == "" {
		return "Email sin asunto"
	}
	return subject
}

// parseSenderName splits a display name, or failing that the address local
// part, into first and last name for a new customer record.
func parseSenderName(name, email string) (string, string) {
	name = strings.TrimSpace(name)
	if name != "" && !strings.Contains(name, "@") {
		parts := strings.SplitN(name, " ", 2)
		if len(parts) == 2 {
			return parts[0], strings.TrimSpace(parts[1])
		}
		return parts[0], "Email"
	}
	local := email
	if at := strings.Index(local, "@"); at > 0 {
		local = local[:at]
	}
	parts := strings.SplitN(local, ".", 2)
	first := title(parts[0])
	last := "Email"
	if len(parts) == 2 && parts[1] != "" {
		last = title(parts[1])
	}
	if first == "" {
		first = "Cliente"
	}
	return first, last
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
