package sanitize

import (
	"strings"
	"testing"
)

func TestCleanStripsMarkup(t *testing.T) {
	in := `<html><head><style>p { color: red; }</style><meta charset="utf-8"></head>` +
		`<body><p>Hola, <b>necesito ayuda</b></p></body></html>`
	got := Clean(in)
	if got != "Hola, necesito ayuda" {
		t.Fatalf("unexpected result %q", got)
	}
	if strings.Contains(got, "color") {
		t.Fatalf("style content leaked: %q", got)
	}
}

func TestCleanDecodesCommonEntities(t *testing.T) {
	got := Clean("uno &amp; dos &quot;tres&quot; &#39;cuatro&#39;")
	want := `uno & dos "tres" 'cuatro'`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCleanCutsQuotedHistorySpanish(t *testing.T) {
	in := "Gracias por la ayuda\n\nDe: soporte@tardesk.com\nEnviado: lunes\nPara: ana@example.com\nAsunto: Re: consulta\n\ntexto anterior citado"
	got := Clean(in)
	if got != "Gracias por la ayuda" {
		t.Fatalf("expected quoted history removed, got %q", got)
	}
}

func TestCleanCutsQuotedHistoryEnglish(t *testing.T) {
	in := "Thanks!\n\nFrom: support@tardesk.com\nSent: Monday\nTo: ana@example.com\nSubject: Re: help\n\nold text"
	got := Clean(in)
	if got != "Thanks!" {
		t.Fatalf("expected quoted history removed, got %q", got)
	}
}

func TestCleanDropsQuoteAndBoilerplateLines(t *testing.T) {
	in := strings.Join([]string{
		"Mi respuesta",
		"> línea citada",
		"On Mon, Jan 5, 2026 John wrote:",
		"El lun 5 ene 2026 Juan escribió:",
		"Enviado desde mi iPhone",
		"Sent from my Android",
		"Get Outlook for iOS",
	}, "\n")
	got := Clean(in)
	if got != "Mi respuesta" {
		t.Fatalf("expected boilerplate dropped, got %q", got)
	}
}

func TestCleanStopsAtSignatureDelimiter(t *testing.T) {
	in := "Contenido real\n--\nJuan Pérez\nGerente"
	got := Clean(in)
	if got != "Contenido real" {
		t.Fatalf("expected signature cut, got %q", got)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"<p>Hola &amp; adiós</p>",
		"texto plano normal",
		"Gracias\n\nDe: x\nAsunto: y\nviejo",
		"línea\n--\nfirma",
		"",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Fatalf("Clean not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestCleanEmptyBody(t *testing.T) {
	if got := Clean(""); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if got := Clean("<div><span></span></div>"); got != "" {
		t.Fatalf("expected markup-only body to clean to empty, got %q", got)
	}
}
