package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// Normalization errors.
var (
	// ErrEmptyPayload means the body parsed to nothing usable.
	ErrEmptyPayload = errors.New("webhook: empty payload")
	// ErrNoSender means no sender address could be resolved from any alias.
	ErrNoSender = errors.New("webhook: payload has no sender address")
)

// envelopeKeys are tried in order to unwrap the actual message container
// from the webhook payload.
var envelopeKeys = []string{"payload", "data", "message", "mail"}

// fieldAliases maps one canonical field to the key variants observed across
// provider webhook versions. Lookups are case-insensitive.
type fieldAliases struct {
	canonical string
	aliases   []string
}

var (
	subjectField    = fieldAliases{"subject", []string{"subject"}}
	messageIDField  = fieldAliases{"message_id", []string{"message_id", "Message-ID", "messageId", "messageIdString", "msg_id"}}
	inReplyToField  = fieldAliases{"in_reply_to", []string{"in_reply_to", "In-Reply-To", "inReplyTo"}}
	referencesField = fieldAliases{"references", []string{"references"}}
	fromField       = fieldAliases{"from", []string{"from", "sender", "fromAddress", "from_email"}}
	bodyField       = fieldAliases{"body", []string{"body", "content", "plainText", "text_body", "message_body", "summary"}}
	htmlBodyField   = fieldAliases{"html_body", []string{"html", "htmlBody", "html_content"}}
	dateField       = fieldAliases{"date", []string{"date", "received_at", "timestamp", "receivedTime"}}
	attachField     = fieldAliases{"attachments", []string{"attachments"}}
)

// Normalizer maps provider-specific payload shapes into the canonical
// InboundEmail record.
type Normalizer struct {
	logger *log.Logger
}

// NewNormalizer builds a Normalizer.
func NewNormalizer(logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize parses the raw webhook body into an InboundEmail. JSON is
// preferred; form-encoded bodies are tolerated. It returns ErrNoSender when
// no sender address survives alias resolution.
func (n *Normalizer) Normalize(rawBody []byte) (*models.InboundEmail, error) {
	payload := parsePayload(rawBody)
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	container := unwrapContainer(payload)

	email := &models.InboundEmail{RawPayload: payload}
	email.Subject = lookupString(container, subjectField)
	if email.Subject == "" {
		email.Subject = "Sin asunto"
	}
	email.MessageID = lookupString(container, messageIDField)
	email.InReplyTo = lookupString(container, inReplyToField)
	email.References = lookupReferences(container)
	email.BodyText = lookupString(container, bodyField)
	email.BodyHTML = lookupString(container, htmlBodyField)
	email.ReceivedAt = lookupTime(container, dateField)
	email.Attachments = lookupAttachments(container)

	fromEmail, fromName := lookupSender(container)
	if fromEmail == "" {
		n.logger.Printf("webhook: payload could not be mapped to email data: no sender")
		return nil, ErrNoSender
	}
	email.FromEmail = fromEmail
	email.FromName = fromName
	return email, nil
}

// parsePayload tries JSON first, then form-encoded fields.
func parsePayload(rawBody []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err == nil {
		return payload
	}
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil
	}
	payload = make(map[string]any, len(values))
	for key, list := range values {
		if len(list) > 0 {
			payload[key] = list[0]
		}
	}
	return payload
}

// unwrapContainer digs through known envelope keys to reach the message
// container. A nested "message" object inside the envelope is unwrapped too.
func unwrapContainer(payload map[string]any) map[string]any {
	container := payload
	for _, key := range envelopeKeys {
		if inner, ok := payload[key].(map[string]any); ok {
			container = inner
			break
		}
	}
	if inner, ok := container["message"].(map[string]any); ok {
		container = inner
	}
	return container
}

// lookup finds the first alias present in the container, matching keys
// case-insensitively.
func lookup(container map[string]any, field fieldAliases) (any, bool) {
	for _, alias := range field.aliases {
		if value, ok := container[alias]; ok && value != nil {
			return value, true
		}
		lower := strings.ToLower(alias)
		for key, value := range container {
			if strings.ToLower(key) == lower && value != nil {
				return value, true
			}
		}
	}
	return nil, false
}

func lookupString(container map[string]any, field fieldAliases) string {
	value, ok := lookup(container, field)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// lookupReferences returns the references chain as a slice. A single string
// value is split on whitespace.
func lookupReferences(container map[string]any) []string {
	value, ok := lookup(container, referencesField)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case string:
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return nil
		}
		return fields
	case []any:
		var refs []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				refs = append(refs, strings.TrimSpace(s))
			}
		}
		return refs
	default:
		return nil
	}
}

var angleAddrPattern = regexp.MustCompile(`<([^<>]+)>`)

// lookupSender resolves the sender address and display name. The provider
// sends either an object with email/name keys or a "Name <addr>" string.
func lookupSender(container map[string]any) (string, string) {
	value, ok := lookup(container, fromField)
	if !ok {
		return "", ""
	}
	switch v := value.(type) {
	case map[string]any:
		email := firstString(v, "email", "mail", "address", "emailAddress")
		name := firstString(v, "name", "displayName")
		return email, name
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return "", ""
		}
		if addr, err := mail.ParseAddress(v); err == nil {
			return addr.Address, addr.Name
		}
		if m := angleAddrPattern.FindStringSubmatch(v); m != nil {
			name := strings.TrimSpace(strings.Replace(v, m[0], "", 1))
			return strings.TrimSpace(m[1]), name
		}
		if strings.Contains(v, "@") {
			return v, ""
		}
		return "", ""
	default:
		return "", ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		lower := strings.ToLower(key)
		for k, v := range m {
			if strings.ToLower(k) == lower {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

func lookupTime(container map[string]any, field fieldAliases) *time.Time {
	value, ok := lookup(container, field)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, time.RFC1123Z, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return &ts
			}
		}
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return epochToTime(epoch)
		}
	case float64:
		return epochToTime(int64(v))
	}
	return nil
}

func epochToTime(epoch int64) *time.Time {
	// Millisecond timestamps are thirteen digits.
	var ts time.Time
	if epoch > 1e12 {
		ts = time.UnixMilli(epoch)
	} else {
		ts = time.Unix(epoch, 0)
	}
	return &ts
}

// lookupAttachments normalizes the attachments array. Entries carry either
// inline base64 content or a remote path to fetch later. Anything that is
// not an array normalizes to none.
func lookupAttachments(container map[string]any) []models.AttachmentRef {
	value, ok := lookup(container, attachField)
	if !ok {
		return nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var refs []models.AttachmentRef
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref := models.AttachmentRef{
			Filename:      firstString(entry, "fileName", "filename", "attachmentName", "name"),
			ContentBase64: firstString(entry, "content", "contentBase64", "data"),
			Mime:          firstString(entry, "mime", "mimeType", "contentType"),
			RemotePath:    firstString(entry, "attachmentPath", "remotePath", "path", "url"),
		}
		if disposition := firstString(entry, "disposition"); strings.EqualFold(disposition, "inline") {
			ref.Inline = true
		}
		if ref.Filename == "" {
			ref.Filename = fmt.Sprintf("attachment-%d", i+1)
		}
		if ref.ContentBase64 == "" && ref.RemotePath == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}
